package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/models"
)

var (
	dueRe      = regexp.MustCompile(`<(\d{4}-\d{2}-\d{2})`)
	startRe    = regexp.MustCompile(`>(\d{4}-\d{2}-\d{2})`)
	priorityRe = regexp.MustCompile(`!{1,3}`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// BuildTasks turns the ordered task lines of one page into a forest of
// tasks with inherited attributes. Parent/child relationships follow
// indentation: a line's parent is the nearest preceding line with a
// strictly smaller indent. Children inherit the parent's priority and
// due date unless they set their own, and accumulate the parent's tags
// on top of theirs. The start date is never inherited.
//
// A task is actionable when it is open and none of its descendants are
// open: completing the last open child flips the parent actionable.
func BuildTasks(path string, lines []TaskLine) []models.Task {
	if len(lines) == 0 {
		return nil
	}

	type frame struct {
		indent int
		idx    int
	}
	tasks := make([]models.Task, 0, len(lines))
	parents := make([]int, 0, len(lines))
	var stack []frame

	for _, ln := range lines {
		for len(stack) > 0 && stack[len(stack)-1].indent >= ln.Indent {
			stack = stack[:len(stack)-1]
		}
		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1].idx
		}

		t := models.Task{
			ID:       fmt.Sprintf("%s:%d", path, ln.Line),
			Path:     path,
			Line:     ln.Line,
			Text:     cleanTaskText(ln.Body),
			Status:   models.StatusTodo,
			Priority: priorityOf(ln.Body),
			Due:      dateOf(dueRe, ln.Body),
			Start:    dateOf(startRe, ln.Body),
		}
		if ln.Done {
			t.Status = models.StatusDone
		}

		tags := make(map[string]struct{})
		for _, m := range tagRe.FindAllStringSubmatch(ln.Body, -1) {
			tags[m[1]] = struct{}{}
		}
		if parent >= 0 {
			p := tasks[parent]
			t.Parent = p.ID
			t.Level = p.Level + 1
			if t.Priority == 0 {
				t.Priority = p.Priority
			}
			if t.Due == "" {
				t.Due = p.Due
			}
			for _, tag := range p.Tags {
				tags[tag] = struct{}{}
			}
		}
		t.Tags = sortedKeys(tags)

		tasks = append(tasks, t)
		parents = append(parents, parent)
		stack = append(stack, frame{indent: ln.Indent, idx: len(tasks) - 1})
	}

	// Children always follow their parent, so one reverse pass settles
	// whether any descendant of a task is still open.
	openDesc := make([]bool, len(tasks))
	for i := len(tasks) - 1; i >= 0; i-- {
		if p := parents[i]; p >= 0 {
			if !tasks[i].Done() || openDesc[i] {
				openDesc[p] = true
			}
		}
	}
	for i := range tasks {
		tasks[i].Actionable = !tasks[i].Done() && !openDesc[i]
	}
	return tasks
}

// cleanTaskText strips tag, date, and priority markers from a task body
// and collapses the leftover whitespace.
func cleanTaskText(body string) string {
	text := tagRe.ReplaceAllString(body, " ")
	text = dueRe.ReplaceAllString(text, " ")
	text = startRe.ReplaceAllString(text, " ")
	text = priorityRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// priorityOf counts the longest exclamation run, capped at 3.
func priorityOf(body string) int {
	best := 0
	for _, m := range priorityRe.FindAllString(body, -1) {
		if len(m) > best {
			best = len(m)
		}
	}
	return best
}

// dateOf extracts the first marker matched by re, discarding values
// that are not real calendar dates.
func dateOf(re *regexp.Regexp, body string) string {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	if _, err := time.Parse("2006-01-02", m[1]); err != nil {
		return ""
	}
	return m[1]
}

// SortTasks orders tasks for presentation: by page path, then source
// line. The forest shape survives because children always sit below
// their parent within a page.
func SortTasks(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Path != tasks[j].Path {
			return tasks[i].Path < tasks[j].Path
		}
		return tasks[i].Line < tasks[j].Line
	})
}
