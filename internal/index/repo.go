package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/record"
)

// PersonRow is the flat row projection of an indexed person record.
type PersonRow struct {
	Path      string
	ID        string
	Name      string
	Basename  string
	Sex       string
	Born      string
	Died      string
	Research  string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one person search hit.
type SearchResult struct {
	Path    string
	ID      string
	Name    string
	Snippet string
}

// ResolutionStatus classifies the outcome of a name or id lookup.
type ResolutionStatus string

const (
	ResolutionFound     ResolutionStatus = "found"
	ResolutionNotFound  ResolutionStatus = "not_found"
	ResolutionAmbiguous ResolutionStatus = "ambiguous"
)

// Candidate is one of the records a display name could refer to.
type Candidate struct {
	Path string `json:"path"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Resolution is the outcome of resolving a reference against the index.
// Ambiguity is a first-class outcome, not an error: a display name shared
// by several records resolves to none of them.
type Resolution struct {
	Status     ResolutionStatus `json:"status"`
	Path       string           `json:"path,omitempty"`
	ID         string           `json:"id,omitempty"`
	Candidates []Candidate      `json:"candidates,omitempty"`
}

// UpsertPerson inserts or replaces a person row, its FTS entry, and its
// declared references within a transaction.
func (db *DB) UpsertPerson(p *models.Person, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	dataJSON, _ := json.Marshal(p)
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	basename := record.Basename(p.Path)

	// Upsert persons table (includes body for fallback search).
	_, err = tx.Exec(`
		INSERT INTO persons (path, id, name, basename, sex, born, died, research, checksum, body, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id         = excluded.id,
			name       = excluded.name,
			basename   = excluded.basename,
			sex        = excluded.sex,
			born       = excluded.born,
			died       = excluded.died,
			research   = excluded.research,
			checksum   = excluded.checksum,
			body       = excluded.body,
			data       = excluded.data,
			updated_at = excluded.updated_at
	`, p.Path, p.ID, p.Name, basename, string(p.Sex), p.Born.String(), p.Died.String(),
		p.Research, p.Checksum, body, string(dataJSON), updated)
	if err != nil {
		return fmt.Errorf("index: upsert person: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, p.Path, p.Name, basename, body); err != nil {
		return err
	}

	// Replace declared references: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM refs WHERE source_path = ?`, p.Path)
	stmt, err := tx.Prepare(`INSERT INTO refs (source_path, source_id, kind, target_id, target_name) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare ref insert: %w", err)
	}
	defer stmt.Close()
	for _, rt := range models.RelTypes {
		for _, ref := range record.SlotRefs(p, rt) {
			if _, err := stmt.Exec(p.Path, p.ID, string(rt), ref.ID, ref.Name); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeletePerson removes a person row, its FTS entry, and its references.
func (db *DB) DeletePerson(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM refs WHERE source_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM persons WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a record, or empty string if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM persons WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path to checksum for every indexed person.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM persons`)
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

// GetPerson returns the indexed person at path, or nil when not indexed.
func (db *DB) GetPerson(path string) (*models.Person, error) {
	var data string
	err := db.conn.QueryRow(`SELECT data FROM persons WHERE path = ?`, path).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("index: get person: %w", err)
	}
	var p models.Person
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("index: decode person %s: %w", path, err)
	}
	return &p, nil
}

// AllPersons returns every indexed person ordered by path. Path order keeps
// downstream graph builds deterministic.
func (db *DB) AllPersons() ([]*models.Person, error) {
	rows, err := db.conn.Query(`SELECT data FROM persons ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: all persons: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p models.Person
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("index: decode person: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// ResolveID maps a canonical id to the path declaring it. When several
// records declare the same id the lowest path wins, matching graph builds.
func (db *DB) ResolveID(id string) (string, bool, error) {
	if id == "" {
		return "", false, nil
	}
	var path string
	err := db.conn.QueryRow(`SELECT path FROM persons WHERE id = ? ORDER BY path LIMIT 1`, id).Scan(&path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("index: resolve id: %w", err)
	}
	return path, true, nil
}

// ResolveName resolves a display name against person names and file
// basenames, case-insensitively.
func (db *DB) ResolveName(name string) (*Resolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return &Resolution{Status: ResolutionNotFound}, nil
	}
	rows, err := db.conn.Query(`
		SELECT path, id, name FROM persons
		WHERE name = ? COLLATE NOCASE OR basename = ? COLLATE NOCASE
		ORDER BY path
	`, name, name)
	if err != nil {
		return nil, fmt.Errorf("index: resolve name: %w", err)
	}
	defer rows.Close()

	var cands []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.Path, &c.ID, &c.Name); err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(cands) {
	case 0:
		return &Resolution{Status: ResolutionNotFound}, nil
	case 1:
		return &Resolution{Status: ResolutionFound, Path: cands[0].Path, ID: cands[0].ID}, nil
	default:
		return &Resolution{Status: ResolutionAmbiguous, Candidates: cands}, nil
	}
}

// Referrers returns the paths of all records declaring a reference to the
// given canonical id.
func (db *DB) Referrers(targetID string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT source_path FROM refs WHERE target_id = ? ORDER BY source_path`, targetID)
	if err != nil {
		return nil, fmt.Errorf("index: referrers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReferrersByName returns the paths of all records declaring a reference
// spelled with the given display name, case-insensitive. Covers records
// reached by wikilink before they carry a canonical id.
func (db *DB) ReferrersByName(name string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT source_path FROM refs WHERE target_name = ? COLLATE NOCASE ORDER BY source_path`, name)
	if err != nil {
		return nil, fmt.Errorf("index: referrers by name: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListPersons returns a page of indexed persons plus the total matching
// count. research filters by research level; sort is one of "path", "name",
// "born", or "updated".
func (db *DB) ListPersons(limit, offset int, research, sort string) ([]PersonRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	var args []interface{}
	if research != "" {
		where = `WHERE research = ?`
		args = append(args, research)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM persons `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count persons: %w", err)
	}

	order := `path`
	switch sort {
	case "name":
		order = `name COLLATE NOCASE, path`
	case "born":
		order = `born, path`
	case "updated":
		order = `updated_at DESC, path`
	}

	rows, err := db.conn.Query(`
		SELECT path, id, name, basename, sex, born, died, research, checksum, updated_at
		FROM persons `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list persons: %w", err)
	}
	defer rows.Close()

	var out []PersonRow
	for rows.Next() {
		var r PersonRow
		if err := rows.Scan(&r.Path, &r.ID, &r.Name, &r.Basename, &r.Sex, &r.Born, &r.Died,
			&r.Research, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
