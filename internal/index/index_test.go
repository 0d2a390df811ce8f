package index

import (
	"os"
	"testing"

	"github.com/starford/othala/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPerson(path, id, name string) *models.Person {
	return &models.Person{Path: path, ID: id, Name: name, Checksum: "cs-" + path}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM persons`).Scan(&count); err != nil {
		t.Fatalf("persons table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM refs`).Scan(&count); err != nil {
		t.Fatalf("refs table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	p := testPerson("people/anna.md", "p1", "Anna Lind")
	p.Checksum = "abc123"
	if err := db.UpsertPerson(p, "Notes about Anna."); err != nil {
		t.Fatalf("UpsertPerson: %v", err)
	}
	cs, err := db.GetChecksum("people/anna.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestResolveID(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPerson(testPerson("b/dup.md", "p1", "Copy"), "")
	_ = db.UpsertPerson(testPerson("a/orig.md", "p1", "Original"), "")

	path, ok, err := db.ResolveID("p1")
	if err != nil {
		t.Fatalf("ResolveID: %v", err)
	}
	if !ok {
		t.Fatal("expected p1 to resolve")
	}
	if path != "a/orig.md" {
		t.Errorf("path = %q, want lowest path %q", path, "a/orig.md")
	}

	_, ok, err = db.ResolveID("missing")
	if err != nil {
		t.Fatalf("ResolveID missing: %v", err)
	}
	if ok {
		t.Error("unknown id should not resolve")
	}
}

func TestResolveName(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPerson(testPerson("people/erik.md", "p1", "Erik Lind"), "")
	_ = db.UpsertPerson(testPerson("people/maria.md", "p2", "Maria Berg"), "")

	res, err := db.ResolveName("erik lind")
	if err != nil {
		t.Fatalf("ResolveName: %v", err)
	}
	if res.Status != ResolutionFound {
		t.Fatalf("status = %q, want %q", res.Status, ResolutionFound)
	}
	if res.Path != "people/erik.md" || res.ID != "p1" {
		t.Errorf("resolved to %q/%q, want people/erik.md/p1", res.Path, res.ID)
	}

	// Basenames resolve too.
	res, _ = db.ResolveName("maria")
	if res.Status != ResolutionFound || res.ID != "p2" {
		t.Errorf("basename lookup = %+v, want found p2", res)
	}

	res, _ = db.ResolveName("Nobody Known")
	if res.Status != ResolutionNotFound {
		t.Errorf("status = %q, want %q", res.Status, ResolutionNotFound)
	}
}

func TestResolveName_Ambiguous(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPerson(testPerson("a/erik.md", "p1", "Erik Lind"), "")
	_ = db.UpsertPerson(testPerson("b/erik-2.md", "p2", "Erik Lind"), "")

	res, err := db.ResolveName("Erik Lind")
	if err != nil {
		t.Fatalf("ResolveName: %v", err)
	}
	if res.Status != ResolutionAmbiguous {
		t.Fatalf("status = %q, want %q", res.Status, ResolutionAmbiguous)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
	if res.Candidates[0].Path != "a/erik.md" {
		t.Errorf("candidates not sorted by path: %+v", res.Candidates)
	}
}

func TestReferrers(t *testing.T) {
	db := testDB(t)
	child := testPerson("people/child.md", "c1", "Child")
	child.Father = models.Ref{ID: "f1", Name: "Father"}
	_ = db.UpsertPerson(child, "")

	spouse := testPerson("people/spouse.md", "s1", "Spouse")
	spouse.Spouses = []models.Ref{{ID: "f1"}}
	_ = db.UpsertPerson(spouse, "")

	refs, err := db.Referrers("f1")
	if err != nil {
		t.Fatalf("Referrers: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 referrers, got %d: %v", len(refs), refs)
	}
	if refs[0] != "people/child.md" || refs[1] != "people/spouse.md" {
		t.Errorf("referrers = %v", refs)
	}
}

func TestReferrersByName(t *testing.T) {
	db := testDB(t)
	child := testPerson("people/child.md", "c1", "Child")
	child.Father = models.Ref{Name: "Gustav Berg"}
	_ = db.UpsertPerson(child, "")

	widow := testPerson("people/widow.md", "w1", "Widow")
	widow.Spouses = []models.Ref{{Name: "gustav berg"}}
	_ = db.UpsertPerson(widow, "")

	refs, err := db.ReferrersByName("Gustav Berg")
	if err != nil {
		t.Fatalf("ReferrersByName: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 referrers, got %d: %v", len(refs), refs)
	}
	if refs[0] != "people/child.md" || refs[1] != "people/widow.md" {
		t.Errorf("referrers = %v", refs)
	}

	refs, _ = db.ReferrersByName("Nobody Known")
	if len(refs) != 0 {
		t.Errorf("expected no referrers, got %v", refs)
	}
}

func TestDeletePerson(t *testing.T) {
	db := testDB(t)
	p := testPerson("del.md", "p1", "Gone")
	p.Children = []models.Ref{{ID: "c1"}}
	_ = db.UpsertPerson(p, "body")

	if err := db.DeletePerson("del.md"); err != nil {
		t.Fatalf("DeletePerson: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted person still has checksum %q", cs)
	}
	refs, _ := db.Referrers("c1")
	if len(refs) != 0 {
		t.Errorf("expected 0 referrers after delete, got %d", len(refs))
	}
}

func TestUpsertReplacesRefs(t *testing.T) {
	db := testDB(t)
	p := testPerson("up.md", "p1", "Shifting")
	p.Father = models.Ref{ID: "old-f"}
	_ = db.UpsertPerson(p, "old body")

	p.Father = models.Ref{ID: "new-f"}
	_ = db.UpsertPerson(p, "new body")

	refs, _ := db.Referrers("old-f")
	if len(refs) != 0 {
		t.Error("old ref should be removed on upsert")
	}
	refs, _ = db.Referrers("new-f")
	if len(refs) != 1 {
		t.Error("new ref should exist")
	}
}

func TestAllPersons_SortedRoundTrip(t *testing.T) {
	db := testDB(t)
	p := testPerson("b/second.md", "p2", "Second")
	p.Born = models.ParseDate("abt 1900")
	_ = db.UpsertPerson(p, "")
	_ = db.UpsertPerson(testPerson("a/first.md", "p1", "First"), "")

	all, err := db.AllPersons()
	if err != nil {
		t.Fatalf("AllPersons: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 persons, got %d", len(all))
	}
	if all[0].Path != "a/first.md" || all[1].Path != "b/second.md" {
		t.Errorf("not sorted by path: %s, %s", all[0].Path, all[1].Path)
	}
	if got := all[1].Born.String(); got != "abt 1900" {
		t.Errorf("born round-trip = %q, want %q", got, "abt 1900")
	}
}

func TestGetPerson(t *testing.T) {
	db := testDB(t)
	p := testPerson("people/anna.md", "p1", "Anna")
	p.Sex = models.SexFemale
	_ = db.UpsertPerson(p, "")

	got, err := db.GetPerson("people/anna.md")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if got == nil || got.ID != "p1" || got.Sex != models.SexFemale {
		t.Errorf("GetPerson = %+v, want p1/F", got)
	}

	got, err = db.GetPerson("missing.md")
	if err != nil {
		t.Fatalf("GetPerson missing: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unindexed path, got %+v", got)
	}
}

func TestListPersons(t *testing.T) {
	db := testDB(t)
	for _, tc := range []struct{ path, id, name, research string }{
		{"a.md", "p1", "Alpha", models.ResearchVerified},
		{"b.md", "p2", "Beta", models.ResearchSpeculative},
		{"c.md", "p3", "Gamma", models.ResearchVerified},
	} {
		p := testPerson(tc.path, tc.id, tc.name)
		p.Research = tc.research
		_ = db.UpsertPerson(p, "")
	}

	rows, total, err := db.ListPersons(10, 0, "", "")
	if err != nil {
		t.Fatalf("ListPersons: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("total = %d, rows = %d, want 3/3", total, len(rows))
	}

	rows, total, err = db.ListPersons(10, 0, models.ResearchVerified, "")
	if err != nil {
		t.Fatalf("ListPersons filtered: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("filtered total = %d, rows = %d, want 2/2", total, len(rows))
	}

	rows, total, err = db.ListPersons(1, 1, "", "name")
	if err != nil {
		t.Fatalf("ListPersons paged: %v", err)
	}
	if total != 3 {
		t.Errorf("paged total = %d, want 3", total)
	}
	if len(rows) != 1 || rows[0].Name != "Beta" {
		t.Errorf("page = %+v, want single row Beta", rows)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPerson(testPerson("s.md", "p1", "Search Me"), "uniqueword appears here")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}
