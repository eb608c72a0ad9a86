// Package parser extracts tags, link targets, and task lines from raw
// page text. Parsing is a pure function of its input: link targets are
// normalized to page paths but never resolved against the vault.
package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/pathcodec"
)

var (
	tagRe     = regexp.MustCompile(`@(\w+)`)
	urlRe     = regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.-]*://\S+|mailto:\S+`)
	headingRe = regexp.MustCompile(`^#+\s*(.+?)\s*$`)

	// Link surface forms: [target|label], [label](target), bare colon
	// tokens not preceded by a word character, and +Child relative links.
	wikiLinkRe = regexp.MustCompile(`\[([^\]|]+)\|[^\]]*\]`)
	mdLinkRe   = regexp.MustCompile(`\[[^\]]+\]\(([^)]+)\)`)
	colonRe    = regexp.MustCompile(`(?m)(?:^|[^0-9A-Za-z_:\[])(:[^\s\[\]():]+(?::[^\s\[\]():]+)*(?:#[^\s\[\]()]+)?)`)
	childRe    = regexp.MustCompile(`(?m)(?:^|[^0-9A-Za-z_])\+([A-Za-z]\w*)`)

	// Task lines: "- [ ]"/"* [x]" checkboxes, "( )"/"(x)" parens, and
	// the Unicode boxes. The leading whitespace group carries the
	// indentation used for hierarchy building.
	taskRe = regexp.MustCompile(`^(\s*)(?:[-*]\s*\[([ xX])\]|\(([xX ]?)\)|([☐☑]))\s+(.+)$`)
)

// TaskLine is one raw checklist line, prior to hierarchy building.
type TaskLine struct {
	Line   int    // 1-based source line number
	Indent int    // indentation width: tab = 4 columns, space = 1
	Done   bool
	Body   string // line content after the checkbox marker
}

// Result holds the parsed projection of one page.
type Result struct {
	Title string
	Tags  []string   // sorted, de-duplicated
	Links []string   // page-path targets, sorted, de-duplicated
	Tasks []TaskLine // in source order
}

// Parse extracts the indexable projection of a page. The page path is
// needed to resolve +Child links against the page's own folder; it is
// never touched otherwise.
func Parse(path, content string) *Result {
	return &Result{
		Title: deriveTitle(path, content),
		Tags:  extractTags(blank(content, urlRe)),
		Links: extractLinks(path, content),
		Tasks: extractTaskLines(content),
	}
}

// deriveTitle returns the first heading line, or the page's leaf name
// when the page has no heading.
func deriveTitle(path, content string) string {
	for _, line := range strings.Split(content, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return m[1]
		}
	}
	id := pathcodec.PathToID(path)
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// extractTags collects @word tokens. URLs are blanked out before the
// scan, so an "@" inside a URL never produces a tag.
func extractTags(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	return sortedKeys(seen)
}

// extractLinks collects targets from all link surface forms and
// resolves each to a page path. External URLs and non-page file
// references are dropped.
func extractLinks(path, text string) []string {
	seen := make(map[string]struct{})
	add := func(raw string) {
		if target, ok := resolveTarget(path, raw); ok {
			seen[target] = struct{}{}
		}
	}

	// Bracketed forms first, on the raw text: blanking URLs earlier
	// would eat the closing paren of [label](https://...) and leave a
	// [label] fragment for the wiki-link scan to mis-match. External
	// targets are rejected inside resolveTarget instead.
	for _, m := range mdLinkRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	text = blank(text, mdLinkRe)

	for _, m := range wikiLinkRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	text = blank(text, wikiLinkRe)

	// Only now blank bare URLs, so the colon scan cannot match inside
	// https:// or mailto: spans.
	text = blank(text, urlRe)

	for _, m := range colonRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range childRe.FindAllStringSubmatch(text, -1) {
		add("+" + m[1])
	}
	return sortedKeys(seen)
}

// resolveTarget converts a raw link target into a page path. The second
// return value is false for targets that are not page links: external
// URLs, pure anchors, and file references with a non-page extension.
func resolveTarget(pagePath, raw string) (string, bool) {
	target := strings.TrimSpace(raw)
	if target == "" || strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
		return "", false
	}

	if strings.HasPrefix(target, "+") {
		name := strings.TrimPrefix(target, "+")
		if name == "" {
			return "", false
		}
		folder := folderOf(pagePath)
		return folder + "/" + name + "/" + name + pathcodec.PageSuffix, true
	}

	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "", false // pure anchor
	}

	if strings.Contains(target, "/") {
		// Path-style target: only vault page files qualify.
		if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
			return "", false
		}
		if !strings.HasSuffix(target, pathcodec.PageSuffix) {
			return "", false
		}
		if !strings.HasPrefix(target, "/") {
			target = "/" + target
		}
		return target, true
	}

	// Colon identifier, anchored or not.
	id := strings.TrimPrefix(target, ":")
	if id == "" {
		return "", false
	}
	if ext := extensionOf(lastSegment(id)); ext != "" && ext != pathcodec.PageSuffix {
		return "", false
	}
	return pathcodec.IDToPath(id, ""), true
}

// extractTaskLines scans for checklist lines, recording the 1-based
// line number and indentation width for each.
func extractTaskLines(content string) []TaskLine {
	var out []TaskLine
	for i, line := range strings.Split(content, "\n") {
		m := taskRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		done := false
		switch {
		case m[2] != "":
			done = strings.EqualFold(m[2], "x")
		case m[3] != "":
			done = strings.EqualFold(m[3], "x")
		case m[4] != "":
			done = m[4] == "☑"
		}
		out = append(out, TaskLine{
			Line:   i + 1,
			Indent: indentWidth(m[1]),
			Done:   done,
			Body:   m[5],
		})
	}
	return out
}

// indentWidth measures indentation with tabs counting as 4 columns and
// spaces as 1, for a stable ordering across editors.
func indentWidth(ws string) int {
	width := 0
	for _, r := range ws {
		if r == '\t' {
			width += 4
		} else {
			width++
		}
	}
	return width
}

// blank replaces matches of re with spaces so later scans cannot
// re-match inside them.
func blank(text string, re *regexp.Regexp) string {
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
}

func folderOf(pagePath string) string {
	cleaned := strings.TrimRight(pagePath, "/")
	if i := strings.LastIndex(cleaned, "/"); i > 0 {
		return cleaned[:i]
	}
	return ""
}

func lastSegment(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func extensionOf(leaf string) string {
	if i := strings.LastIndex(leaf, "."); i >= 0 {
		return leaf[i:]
	}
	return ""
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
