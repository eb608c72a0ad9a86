// Package index provides the SQLite-backed page index: pages, tags,
// link edges, and the task forest, kept current incrementally via
// content checksums.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// indexSchemaVersion participates in the stored checksum. Bump it when
// parsing or inheritance rules change so every page re-indexes on the
// next sync even though its bytes are identical.
const indexSchemaVersion = "task-parse-v2"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	path       TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS page_tags (
	path TEXT NOT NULL,
	tag  TEXT NOT NULL,
	UNIQUE(path, tag)
);

CREATE TABLE IF NOT EXISTS links (
	from_path TEXT NOT NULL,
	to_path   TEXT NOT NULL,
	UNIQUE(from_path, to_path)
);

CREATE TABLE IF NOT EXISTS tasks (
	task_id    TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	line       INTEGER NOT NULL,
	text       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'todo',
	priority   INTEGER NOT NULL DEFAULT 0,
	due        TEXT NOT NULL DEFAULT '',
	starts     TEXT NOT NULL DEFAULT '',
	parent_id  TEXT NOT NULL DEFAULT '',
	level      INTEGER NOT NULL DEFAULT 0,
	actionable INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS task_tags (
	task_id TEXT NOT NULL,
	tag     TEXT NOT NULL,
	UNIQUE(task_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_page_tags_tag   ON page_tags(tag);
CREATE INDEX IF NOT EXISTS idx_links_from      ON links(from_path);
CREATE INDEX IF NOT EXISTS idx_links_to        ON links(to_path);
CREATE INDEX IF NOT EXISTS idx_tasks_path      ON tasks(path);
CREATE INDEX IF NOT EXISTS idx_task_tags_task  ON task_tags(task_id);
CREATE INDEX IF NOT EXISTS idx_task_tags_tag   ON task_tags(tag);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
