// Package index provides the SQLite-backed person index: canonical id and
// display-name resolution, declared-reference bookkeeping, and optional
// FTS5 person search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS persons (
	path       TEXT PRIMARY KEY,
	id         TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	basename   TEXT NOT NULL DEFAULT '',
	sex        TEXT NOT NULL DEFAULT '',
	born       TEXT NOT NULL DEFAULT '',
	died       TEXT NOT NULL DEFAULT '',
	research   TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_persons_id ON persons(id);
CREATE INDEX IF NOT EXISTS idx_persons_name ON persons(name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_persons_basename ON persons(basename COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS refs (
	source_path TEXT NOT NULL,
	source_id   TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	target_id   TEXT NOT NULL DEFAULT '',
	target_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_refs_source ON refs(source_path);
CREATE INDEX IF NOT EXISTS idx_refs_target_id ON refs(target_id);
CREATE INDEX IF NOT EXISTS idx_refs_target_name ON refs(target_name COLLATE NOCASE);
`

// DB wraps a sql.DB with person-index operations.
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
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
