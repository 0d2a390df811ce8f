//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS persons_fts USING fts5(
			path UNINDEXED,
			name,
			basename,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, name, basename, body string) error {
	_, _ = tx.Exec(`DELETE FROM persons_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO persons_fts (path, name, basename, body) VALUES (?, ?, ?, ?)`,
		path, name, basename, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM persons_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search over person names, basenames,
// and body text, returning matches with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.path,
		       p.id,
		       p.name,
		       snippet(persons_fts, 3, '<b>', '</b>', '...', 64)
		FROM persons_fts f
		JOIN persons p ON p.path = f.path
		WHERE persons_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.ID, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
