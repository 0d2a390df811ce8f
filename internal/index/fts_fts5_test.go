//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM persons_fts`).Scan(&count); err != nil {
		t.Fatalf("persons_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	p := testPerson("people/fts.md", "p1", "Astrid Holm")
	if err := db.UpsertPerson(p, "Emigrated to Minnesota aboard the steamship Hero."); err != nil {
		t.Fatalf("UpsertPerson: %v", err)
	}

	results, err := db.Search("steamship", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "people/fts.md" {
		t.Errorf("path = %q", results[0].Path)
	}
	// FTS5 snippet should contain bold markers.
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPerson(testPerson("gone.md", "p1", "Gone"), "vanishing content")
	_ = db.DeletePerson("gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.md" {
			t.Error("deleted person still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPerson(testPerson("evo.md", "p1", "Old Name"), "original text")
	_ = db.UpsertPerson(testPerson("evo.md", "p1", "New Name"), "replacement text")

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Name != "New Name" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
