package mcpserver

// PageFormatContract describes the canonical page format that LLM
// consumers should follow when creating or updating pages.
const PageFormatContract = `# Ansuz Page Format Contract

Every page stored in Ansuz MUST follow this structure.

## Addressing

- A page is addressed by a colon identifier: ` + "`" + `Projects:Roadmap` + "`" + `.
- A leading ` + "`" + `:` + "`" + ` anchors the identifier at the vault root and is always
  accepted: ` + "`" + `:Projects:Roadmap` + "`" + ` and ` + "`" + `Projects:Roadmap` + "`" + ` are the same page.
- On disk each page lives in a folder bearing its own name:
  ` + "`" + `Projects:Roadmap` + "`" + ` is stored at ` + "`" + `/Projects/Roadmap/Roadmap.md` + "`" + `.

## Structure

` + "```" + `markdown
# Human-readable title

Body text in standard Markdown.

Link to another page with [Target:Page|display text] or a bare
:Target:Page token. Link to a direct sub-page with +SubPage.

Tag a line with @tagname words.

- [ ] An open task @home !! <2025-12-01
    - [ ] A sub-task (inherits priority and due date)
- [x] A completed task
` + "```" + `

## Rules

1. **The first heading is the page title.** Without a heading the page
   name is used.
2. **Tags** are ` + "`" + `@word` + "`" + ` tokens (letters, digits, underscore).
3. **Tasks** are checklist lines: ` + "`" + `- [ ]` + "`" + ` open, ` + "`" + `- [x]` + "`" + ` done.
   Indent with 4 spaces (or one tab) per nesting level; sub-tasks
   inherit priority and due date from their parent unless they set
   their own.
4. **Task markers** inside the task text:
   ` + "`" + `!` + "`" + ` to ` + "`" + `!!!` + "`" + ` priority, ` + "`" + `<YYYY-MM-DD` + "`" + ` due date, ` + "`" + `>YYYY-MM-DD` + "`" + ` start date.
5. **Links** are never validated: linking to a page that does not exist
   yet is fine and shows up in link_relations once either side exists.
6. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
# Party Planning

Related: [Budget:2025|this year's budget], +Guests

- [ ] Organize party <2025-08-19 !!
    - [ ] Send invitations <2025-08-01
    - [ ] Buy food & drinks @errands
` + "```" + `
`
