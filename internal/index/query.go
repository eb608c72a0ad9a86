package index

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

// journalDayRe matches the page file of a bare journal day,
// e.g. /Journal/2025/11/12/12.md.
var journalDayRe = regexp.MustCompile(`^/Journal/\d{4}/\d{2}/(\d{2})/\d{2}\` + `.md$`)

// SearchPages ranks pages against a query string: exact path match
// first, then pages directly under the query path, then exact title
// matches, then substring hits, breaking ties by recency. Journal day
// pages that carry no sub-pages are filtered out so date scaffolding
// does not drown real results.
func (db *DB) SearchPages(query string, limit int) ([]models.PageSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	q := strings.TrimSpace(query)

	var rows *sql.Rows
	var err error
	if q == "" {
		rows, err = db.conn.Query(`
			SELECT path, title FROM pages
			ORDER BY updated_at DESC, path
			LIMIT ?
		`, limit)
	} else {
		contains := "%" + q + "%"
		// The path rank tiers treat the term as vault-rooted, so "Fin"
		// ranks /Fin/... pages ahead of substring hits elsewhere.
		pathQ := q
		if !strings.HasPrefix(pathQ, "/") {
			pathQ = "/" + pathQ
		}
		rows, err = db.conn.Query(`
			SELECT path, title FROM pages
			WHERE path LIKE ? OR title LIKE ?
			ORDER BY
				CASE
					WHEN path = ?       THEN 0
					WHEN path LIKE ?    THEN 1
					WHEN title = ?      THEN 2
					ELSE 3
				END,
				updated_at DESC,
				path
			LIMIT ?
		`, contains, contains, pathQ, pathQ+"/%", q, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("index: search pages: %w", err)
	}
	defer rows.Close()

	var hits []models.PageSummary
	for rows.Next() {
		var s models.PageSummary
		if err := rows.Scan(&s.Path, &s.Title); err != nil {
			return nil, err
		}
		hits = append(hits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := hits[:0]
	for _, s := range hits {
		keep, err := db.keepInSearch(s.Path)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, s)
		}
	}
	return out, nil
}

// keepInSearch reports whether a path belongs in search results. A bare
// journal day page is noise; one with sub-pages is a real hub.
func (db *DB) keepInSearch(path string) (bool, error) {
	if !journalDayRe.MatchString(path) {
		return true, nil
	}
	folder := path[:strings.LastIndex(path, "/")]
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM pages WHERE path LIKE ? AND path != ?`, folder+"/%", path).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("index: journal descendant check: %w", err)
	}
	return n > 0, nil
}

// TasksQuery selects tasks from the index.
type TasksQuery struct {
	Query            string   // substring match on task text
	Tags             []string // every listed tag must be present
	IncludeDone      bool
	IncludeAncestors bool // pull in non-matching ancestors of each hit
	ActionableOnly   bool
	// NonActionableTags marks tags whose tasks are parked (waiting on
	// someone, blocked): such tasks are dropped from actionable-only
	// results even when their stored actionable flag is set.
	NonActionableTags []string
}

// Tasks returns tasks matching the query, ordered by page path and
// source line so each page's forest reads top to bottom.
func (db *DB) Tasks(q TasksQuery) ([]models.Task, error) {
	var conds []string
	var args []any

	if !q.IncludeDone {
		conds = append(conds, `t.status != ?`)
		args = append(args, models.StatusDone)
	}
	if s := strings.TrimSpace(q.Query); s != "" {
		conds = append(conds, `t.text LIKE ?`)
		args = append(args, "%"+s+"%")
	}
	if tags := bareTags(q.Tags); len(tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
		conds = append(conds, fmt.Sprintf(`t.task_id IN (
			SELECT task_id FROM task_tags WHERE tag IN (%s)
			GROUP BY task_id HAVING COUNT(DISTINCT tag) = %d
		)`, placeholders, len(tags)))
		for _, tag := range tags {
			args = append(args, tag)
		}
	}
	if q.ActionableOnly {
		// A tag filter wins over the actionable predicate: a task the
		// user asked for by tag is surfaced even while blocked by open
		// sub-tasks.
		if len(bareTags(q.Tags)) == 0 {
			conds = append(conds, `t.actionable = 1`)
		}
		if parked := bareTags(q.NonActionableTags); len(parked) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(parked)), ",")
			conds = append(conds, fmt.Sprintf(`NOT EXISTS (
				SELECT 1 FROM task_tags tt WHERE tt.task_id = t.task_id AND tt.tag IN (%s)
			)`, placeholders))
			for _, tag := range parked {
				args = append(args, tag)
			}
		}
	}

	query := `SELECT t.task_id, t.path, t.line, t.text, t.status, t.priority, t.due, t.starts, t.parent_id, t.level, t.actionable FROM tasks t`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}

	tasks, err := db.scanTasks(query, args...)
	if err != nil {
		return nil, err
	}

	if q.IncludeAncestors {
		tasks, err = db.withAncestors(tasks)
		if err != nil {
			return nil, err
		}
	}
	if err := db.attachTaskTags(tasks); err != nil {
		return nil, err
	}
	parser.SortTasks(tasks)
	return tasks, nil
}

// withAncestors walks parent identifiers upward and pulls in any
// ancestor missing from the result set, so a hit deep in a forest
// arrives with its context. Ancestors keep their stored actionable
// flag, which is false whenever an open descendant exists.
func (db *DB) withAncestors(tasks []models.Task) ([]models.Task, error) {
	have := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		have[t.ID] = struct{}{}
	}

	pending := make([]string, 0)
	for _, t := range tasks {
		if t.Parent != "" {
			if _, ok := have[t.Parent]; !ok {
				pending = append(pending, t.Parent)
			}
		}
	}

	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if _, ok := have[id]; ok {
			continue
		}
		got, err := db.scanTasks(`SELECT task_id, path, line, text, status, priority, due, starts, parent_id, level, actionable FROM tasks WHERE task_id = ?`, id)
		if err != nil {
			return nil, err
		}
		if len(got) == 0 {
			continue
		}
		t := got[0]
		have[t.ID] = struct{}{}
		tasks = append(tasks, t)
		if t.Parent != "" {
			if _, ok := have[t.Parent]; !ok {
				pending = append(pending, t.Parent)
			}
		}
	}
	return tasks, nil
}

// attachTaskTags loads the tag set of each task in place.
func (db *DB) attachTaskTags(tasks []models.Task) error {
	for i := range tasks {
		rows, err := db.conn.Query(`SELECT tag FROM task_tags WHERE task_id = ? ORDER BY tag`, tasks[i].ID)
		if err != nil {
			return fmt.Errorf("index: task tags: %w", err)
		}
		var tags []string
		for rows.Next() {
			var tag string
			if err := rows.Scan(&tag); err != nil {
				rows.Close()
				return err
			}
			tags = append(tags, tag)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		tasks[i].Tags = tags
	}
	return nil
}

func (db *DB) scanTasks(query string, args ...any) ([]models.Task, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query tasks: %w", err)
	}
	defer rows.Close()
	var out []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Path, &t.Line, &t.Text, &t.Status, &t.Priority, &t.Due, &t.Start, &t.Parent, &t.Level, &t.Actionable); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LinkRelations returns both directions of the link graph around one
// page. Unresolved targets appear on the outgoing side untouched.
func (db *DB) LinkRelations(path string) (*models.LinkRelations, error) {
	incoming, err := db.linkColumn(`SELECT from_path FROM links WHERE to_path = ? ORDER BY from_path`, path)
	if err != nil {
		return nil, err
	}
	outgoing, err := db.linkColumn(`SELECT to_path FROM links WHERE from_path = ? ORDER BY to_path`, path)
	if err != nil {
		return nil, err
	}
	return &models.LinkRelations{Incoming: incoming, Outgoing: outgoing}, nil
}

func (db *DB) linkColumn(query, path string) ([]string, error) {
	rows, err := db.conn.Query(query, path)
	if err != nil {
		return nil, fmt.Errorf("index: link relations: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TagSummary aggregates page tags in tag order.
func (db *DB) TagSummary() ([]models.TagCount, error) {
	return db.tagCounts(`SELECT tag, COUNT(*) FROM page_tags GROUP BY tag ORDER BY tag`)
}

// TaskTagSummary aggregates task tags in tag order. Counts are
// per-task regardless of status; tag rows of a done task stay until the
// page re-indexes without it.
func (db *DB) TaskTagSummary() ([]models.TagCount, error) {
	return db.tagCounts(`SELECT tag, COUNT(*) FROM task_tags GROUP BY tag ORDER BY tag`)
}

func (db *DB) tagCounts(query string) ([]models.TagCount, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("index: tag summary: %w", err)
	}
	defer rows.Close()
	var out []models.TagCount
	for rows.Next() {
		var tc models.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// bareTags strips a leading "@" from each tag so callers may pass tags
// in either the marker or the stored form.
func bareTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "@")
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
