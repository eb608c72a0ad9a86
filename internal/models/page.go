// Package models defines the domain types for Ansuz.
package models

import "time"

// Page represents an indexed wiki page. The path is vault-relative,
// begins with "/", and terminates in a page file named after its
// parent folder (folder-per-page layout, e.g. /A/B/B.md).
type Page struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageSummary is a lightweight representation returned by page search.
type PageSummary struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// PageMeta is the listing shape returned by the storage provider.
type PageMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkEdge is a directed reference between two pages. Targets are not
// validated: a to_path may point at a page that does not exist yet.
type LinkEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LinkRelations holds both directions of the link graph around one page.
type LinkRelations struct {
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`
}

// TagCount is one row of a tag aggregation.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Task status values.
const (
	StatusTodo = "todo"
	StatusDone = "done"
)

// Task is a single checklist item extracted from a page. ID is
// "{path}:{line}" with a 1-based source line. Priority and Due carry the
// effective (inherited) values; Level is the depth in the per-page forest
// with 0 for top-level tasks. Actionable is recomputed on every extraction
// rather than edited in place: a task is actionable when it is open and
// has no open descendant.
type Task struct {
	ID         string   `json:"id"`
	Path       string   `json:"path"`
	Line       int      `json:"line"`
	Text       string   `json:"text"`
	Status     string   `json:"status"`
	Priority   int      `json:"priority"`
	Due        string   `json:"due,omitempty"`
	Start      string   `json:"start,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	Level      int      `json:"level"`
	Tags       []string `json:"tags,omitempty"`
	Actionable bool     `json:"actionable"`
}

// Done reports whether the task has been completed.
func (t Task) Done() bool { return t.Status == StatusDone }
