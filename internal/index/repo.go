package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/pathcodec"
)

// IndexPage brings one page up to date. The stored checksum covers both
// the content bytes and the schema version, so an unchanged page is a
// single SELECT and no parse work.
func (db *DB) IndexPage(path string, data []byte) (Outcome, error) {
	cs := checksum.Versioned(indexSchemaVersion, data)
	stored, err := db.GetChecksum(path)
	if err != nil {
		return Unchanged, err
	}
	if stored == cs {
		return Unchanged, nil
	}

	res := parser.Parse(path, string(data))
	page := models.Page{
		Path:      path,
		Title:     res.Title,
		Checksum:  cs,
		UpdatedAt: time.Now().UTC(),
	}
	tasks := parser.BuildTasks(path, res.Tasks)
	if err := db.UpdatePage(page, res.Tags, res.Links, tasks); err != nil {
		return Unchanged, err
	}
	return Updated, nil
}

// UpdatePage replaces a page's row and all of its derived rows (tags,
// outgoing links, tasks, task tags) in one transaction. Incoming links
// from other pages are untouched.
func (db *DB) UpdatePage(page models.Page, tags, links []string, tasks []models.Task) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO pages (path, title, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, page.Path, page.Title, page.Checksum, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	if err := deleteDerivedRows(tx, page.Path); err != nil {
		return err
	}

	for _, tag := range tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO page_tags (path, tag) VALUES (?, ?)`, page.Path, tag); err != nil {
			return fmt.Errorf("index: insert page tag: %w", err)
		}
	}
	for _, target := range links {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO links (from_path, to_path) VALUES (?, ?)`, page.Path, target); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}

	if len(tasks) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO tasks (task_id, path, line, text, status, priority, due, starts, parent_id, level, actionable)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare task insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range tasks {
			if _, err := stmt.Exec(t.ID, t.Path, t.Line, t.Text, t.Status, t.Priority, t.Due, t.Start, t.Parent, t.Level, t.Actionable); err != nil {
				return fmt.Errorf("index: insert task: %w", err)
			}
			for _, tag := range t.Tags {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO task_tags (task_id, tag) VALUES (?, ?)`, t.ID, tag); err != nil {
					return fmt.Errorf("index: insert task tag: %w", err)
				}
			}
		}
	}

	return tx.Commit()
}

// DeletePage removes a page and everything derived from it, including
// link edges pointing at it from other pages.
func (db *DB) DeletePage(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDerivedRows(tx, path); err != nil {
		return err
	}
	_, _ = tx.Exec(`DELETE FROM links WHERE to_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM pages WHERE path = ?`, path)

	return tx.Commit()
}

// DeleteFolder removes every page whose path equals the prefix or is
// nested under it, cascading to tags, tasks, and link edges in either
// direction. Pages outside the prefix are untouched.
func (db *DB) DeleteFolder(folder string) error {
	prefix := strings.TrimRight(folder, "/")
	if prefix == "" {
		return fmt.Errorf("index: delete folder: empty prefix")
	}
	like := prefix + "/%"

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM task_tags WHERE task_id IN (SELECT task_id FROM tasks WHERE path = ? OR path LIKE ?)`, prefix, like)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE path = ? OR path LIKE ?`, prefix, like)
	_, _ = tx.Exec(`DELETE FROM page_tags WHERE path = ? OR path LIKE ?`, prefix, like)
	_, _ = tx.Exec(`DELETE FROM links WHERE from_path = ? OR from_path LIKE ? OR to_path = ? OR to_path LIKE ?`, prefix, like, prefix, like)
	_, _ = tx.Exec(`DELETE FROM pages WHERE path = ? OR path LIKE ?`, prefix, like)

	return tx.Commit()
}

// MoveFolder rebases every indexed path under oldFolder to newFolder in
// one transaction. The moved folder's own root page is renamed to the
// new leaf so the folder-per-page layout stays intact. Link edges
// pointing into the moved subtree are rewritten too, so backlinks
// survive the move.
func (db *DB) MoveFolder(oldFolder, newFolder string) error {
	oldClean := "/" + strings.Trim(oldFolder, "/")
	newClean := "/" + strings.Trim(newFolder, "/")
	if oldClean == "/" || newClean == "/" {
		return fmt.Errorf("index: move folder: empty prefix")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	moved, err := pathsUnder(tx, oldClean)
	if err != nil {
		return err
	}

	for _, oldPath := range moved {
		newPath := pathcodec.RebasePath(oldPath, oldClean, newClean)
		if newPath == oldPath {
			continue
		}
		if err := repointPage(tx, oldPath, newPath); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// repointPage rewrites every occurrence of a page path, including the
// line-qualified task identifiers derived from it.
func repointPage(tx *sql.Tx, oldPath, newPath string) error {
	if _, err := tx.Exec(`UPDATE pages SET path = ? WHERE path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("index: move page: %w", err)
	}
	if _, err := tx.Exec(`UPDATE page_tags SET path = ? WHERE path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("index: move page tags: %w", err)
	}
	if _, err := tx.Exec(`UPDATE links SET from_path = ? WHERE from_path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("index: move outgoing links: %w", err)
	}
	if _, err := tx.Exec(`UPDATE links SET to_path = ? WHERE to_path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("index: move incoming links: %w", err)
	}

	// Task identifiers embed the page path; rebuild them row by row.
	rows, err := tx.Query(`SELECT task_id, parent_id FROM tasks WHERE path = ?`, oldPath)
	if err != nil {
		return fmt.Errorf("index: load tasks for move: %w", err)
	}
	type idPair struct{ id, parent string }
	var ids []idPair
	for rows.Next() {
		var p idPair
		if err := rows.Scan(&p.id, &p.parent); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	oldPrefix := oldPath + ":"
	newPrefix := newPath + ":"
	rebase := func(id string) string {
		if rest, ok := strings.CutPrefix(id, oldPrefix); ok {
			return newPrefix + rest
		}
		return id
	}
	for _, p := range ids {
		newID := rebase(p.id)
		if _, err := tx.Exec(`UPDATE task_tags SET task_id = ? WHERE task_id = ?`, newID, p.id); err != nil {
			return fmt.Errorf("index: move task tags: %w", err)
		}
		if _, err := tx.Exec(`UPDATE tasks SET path = ?, task_id = ?, parent_id = ? WHERE task_id = ?`,
			newPath, newID, rebase(p.parent), p.id); err != nil {
			return fmt.Errorf("index: move task: %w", err)
		}
	}
	return nil
}

func pathsUnder(tx *sql.Tx, folder string) ([]string, error) {
	rows, err := tx.Query(`SELECT path FROM pages WHERE path LIKE ? ORDER BY path`, strings.TrimRight(folder, "/")+"/%")
	if err != nil {
		return nil, fmt.Errorf("index: paths under: %w", err)
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

// deleteDerivedRows drops everything a page contributed: its tags,
// outgoing links, tasks, and task tags.
func deleteDerivedRows(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM task_tags WHERE task_id IN (SELECT task_id FROM tasks WHERE path = ?)`, path); err != nil {
		return fmt.Errorf("index: delete task tags: %w", err)
	}
	_, _ = tx.Exec(`DELETE FROM tasks WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM page_tags WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE from_path = ?`, path)
	return nil
}

// GetPage returns one page row, or a nil page when it is not indexed.
func (db *DB) GetPage(path string) (*models.Page, error) {
	var p models.Page
	err := db.conn.QueryRow(`SELECT path, title, checksum, updated_at FROM pages WHERE path = ?`, path).
		Scan(&p.Path, &p.Title, &p.Checksum, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get page: %w", err)
	}
	return &p, nil
}

// GetChecksum returns the stored checksum for a page, or empty string
// when the page is not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM pages WHERE path = ?`, path).Scan(&cs)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns the stored checksum for every indexed page.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
