package familyservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/record"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/testutil"
)

// serviceTestEnv builds a vault, an index, and a Service wired together.
func serviceTestEnv(t *testing.T) (*Service, storage.Provider, *index.DB) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := NewService(store, db, testLogger(), Options{})
	return svc, store, db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// personRecord renders a person file from frontmatter lines.
func personRecord(lines ...string) []byte {
	var b strings.Builder
	b.WriteString("---\ntype: person\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("---\n\nNotes.\n")
	return []byte(b.String())
}

// seed writes records into the vault and brings the index up to date.
func seed(t *testing.T, store storage.Provider, db *index.DB, files map[string][]byte) {
	t.Helper()
	for path, data := range files {
		if err := store.Write(path, data); err != nil {
			t.Fatal(err)
		}
	}
	if err := index.Sync(db, store, testLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

// readBack re-reads a record from the vault and decodes it.
func readBack(t *testing.T, store storage.Provider, path string) (*models.Person, string) {
	t.Helper()
	data, err := store.Read(path)
	if err != nil {
		t.Fatalf("Read %s: %v", path, err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("Parse %s: %v", path, err)
	}
	return record.Decode(path, res), string(data)
}

func TestCreatePerson_AssignsCanonicalID(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	ctx := context.Background()

	detail, err := svc.CreatePerson(ctx, "people/new.md", []byte("---\nname: Arne Berg\n---\n\nNotes.\n"))
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	id := detail.Person.ID
	if id == "" {
		t.Fatal("no canonical id assigned")
	}

	p, raw := readBack(t, store, "people/new.md")
	if p.ID != id {
		t.Errorf("file id = %q, want %q", p.ID, id)
	}
	if !strings.Contains(raw, "type: person") {
		t.Errorf("type marker missing:\n%s", raw)
	}
	if path, ok, err := db.ResolveID(id); err != nil || !ok || path != "people/new.md" {
		t.Errorf("ResolveID(%s) = %q, %v, %v", id, path, ok, err)
	}
}

func TestCreatePerson_KeepsDeclaredID(t *testing.T) {
	svc, store, _ := serviceTestEnv(t)

	detail, err := svc.CreatePerson(context.Background(), "people/arne.md",
		personRecord(`id: p-arne`, `name: Arne Berg`))
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	if detail.Person.ID != "p-arne" {
		t.Errorf("id = %q, want p-arne", detail.Person.ID)
	}
	_, raw := readBack(t, store, "people/arne.md")
	if !strings.Contains(raw, "id: p-arne") {
		t.Errorf("declared id rewritten:\n%s", raw)
	}
}

func TestCreatePerson_RejectsDuplicateID(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/arne.md": personRecord(`id: p-arne`, `name: Arne Berg`),
	})

	_, err := svc.CreatePerson(context.Background(), "people/imposter.md",
		personRecord(`id: p-arne`, `name: Arne Borg`))
	if !errors.Is(err, apperr.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if _, readErr := store.Read("people/imposter.md"); readErr == nil {
		t.Error("rejected record was written anyway")
	}
}

func TestCreatePerson_RejectsOtherRecordType(t *testing.T) {
	svc, _, _ := serviceTestEnv(t)

	_, err := svc.CreatePerson(context.Background(), "places/bergen.md",
		[]byte("---\ntype: place\nname: Bergen\n---\n"))
	if err == nil {
		t.Fatal("expected error for non-person record")
	}
	if !strings.Contains(err.Error(), "not a person record") {
		t.Errorf("err = %v", err)
	}
}

func TestCreatePerson_AlreadyExists(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/arne.md": personRecord(`id: p-arne`, `name: Arne Berg`),
	})

	_, err := svc.CreatePerson(context.Background(), "people/arne.md",
		personRecord(`id: p-arne2`, `name: Arne Berg`))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreatePlaceholder(t *testing.T) {
	svc, store, _ := serviceTestEnv(t)

	detail, err := svc.CreatePlaceholder(context.Background(), "people/unknown-spouse.md",
		record.Skeleton{Name: "Unknown Spouse"})
	if err != nil {
		t.Fatalf("CreatePlaceholder: %v", err)
	}
	if detail.Person.ID == "" {
		t.Error("placeholder has no id")
	}
	p, _ := readBack(t, store, "people/unknown-spouse.md")
	if p.Name != "Unknown Spouse" {
		t.Errorf("name = %q", p.Name)
	}
}

func TestGetPerson_NotFound(t *testing.T) {
	svc, _, _ := serviceTestEnv(t)
	if _, err := svc.GetPerson(context.Background(), "people/ghost.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetPerson_Referrers(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/gustav.md": personRecord(`id: p-gustav`, `name: Gustav Berg`),
		"people/arne.md":   personRecord(`id: p-arne`, `name: Arne Berg`, `father_id: p-gustav`),
	})

	detail, err := svc.GetPerson(context.Background(), "people/gustav.md")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	if len(detail.Referrers) != 1 || detail.Referrers[0] != "people/arne.md" {
		t.Errorf("referrers = %v", detail.Referrers)
	}
	if detail.Checksum == "" {
		t.Error("checksum empty")
	}
}

func TestGetPerson_ReferrersByName(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/gustav.md": personRecord(`id: p-gustav`, `name: Gustav Berg`),
		"people/arne.md":   personRecord(`id: p-arne`, `name: Arne Berg`, `father: "[[Gustav Berg]]"`),
		"people/bjorn.md":  personRecord(`id: p-bjorn`, `name: Bjorn Berg`, `father_id: p-gustav`),
	})

	detail, err := svc.GetPerson(context.Background(), "people/gustav.md")
	if err != nil {
		t.Fatalf("GetPerson: %v", err)
	}
	want := []string{"people/arne.md", "people/bjorn.md"}
	if len(detail.Referrers) != 2 || detail.Referrers[0] != want[0] || detail.Referrers[1] != want[1] {
		t.Errorf("referrers = %v, want %v", detail.Referrers, want)
	}
}

func TestUpdatePerson_ChecksumGate(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/arne.md": personRecord(`id: p-arne`, `name: Arne Berg`),
	})
	ctx := context.Background()

	detail, err := svc.GetPerson(ctx, "people/arne.md")
	if err != nil {
		t.Fatal(err)
	}

	next := personRecord(`id: p-arne`, `name: Arne Berg`, `born: 1920`)
	if _, err := svc.UpdatePerson(ctx, "people/arne.md", next, "stale-checksum"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}
	if _, err := svc.UpdatePerson(ctx, "people/arne.md", next, detail.Checksum); err != nil {
		t.Fatalf("matching update: %v", err)
	}
	p, _ := readBack(t, store, "people/arne.md")
	if p.Born.Year != 1920 {
		t.Errorf("born = %v", p.Born)
	}
}

func TestUpdatePerson_RejectsStolenID(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/arne.md":  personRecord(`id: p-arne`, `name: Arne Berg`),
		"people/bodil.md": personRecord(`id: p-bodil`, `name: Bodil Berg`),
	})

	_, err := svc.UpdatePerson(context.Background(), "people/bodil.md",
		personRecord(`id: p-arne`, `name: Bodil Berg`), "")
	if !errors.Is(err, apperr.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
}

func TestDeletePerson(t *testing.T) {
	svc, _, db := serviceTestEnv(t)
	ctx := context.Background()
	if _, err := svc.CreatePerson(ctx, "people/arne.md", personRecord(`id: p-arne`, `name: Arne Berg`)); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeletePerson(ctx, "people/arne.md"); err != nil {
		t.Fatalf("DeletePerson: %v", err)
	}
	if _, ok, _ := db.ResolveID("p-arne"); ok {
		t.Error("id still resolves after delete")
	}
	if err := svc.DeletePerson(ctx, "people/arne.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListPersons_ResearchFilter(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/arne.md":  personRecord(`id: p-arne`, `name: Arne Berg`, `research: verified`),
		"people/bodil.md": personRecord(`id: p-bodil`, `name: Bodil Berg`),
	})

	items, total, err := svc.ListPersons(context.Background(), 10, 0, "verified", "name")
	if err != nil {
		t.Fatalf("ListPersons: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != "p-arne" {
		t.Errorf("items = %+v, total = %d", items, total)
	}
}

func TestSnapshotCaching(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/arne.md": personRecord(`id: p-arne`, `name: Arne Berg`),
	})
	ctx := context.Background()

	g1, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if g1 != g2 {
		t.Error("unchanged snapshot was rebuilt")
	}

	if _, err := svc.CreatePerson(ctx, "people/bodil.md", personRecord(`id: p-bodil`, `name: Bodil Berg`)); err != nil {
		t.Fatal(err)
	}
	g3, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if g3 == g1 {
		t.Error("snapshot not rebuilt after create")
	}
	if g3.Size() != 2 {
		t.Errorf("size = %d, want 2", g3.Size())
	}

	// The old snapshot is untouched by the rebuild.
	if g1.Size() != 1 {
		t.Errorf("old snapshot size = %d, want 1", g1.Size())
	}
}

func TestEffectiveParents_UnknownRoot(t *testing.T) {
	svc, _, _ := serviceTestEnv(t)
	_, found, err := svc.EffectiveParents(context.Background(), "p-ghost")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("unknown root reported as found")
	}
}

func TestGraphExport(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/gustav.md": personRecord(`id: p-gustav`, `name: Gustav Berg`, `sex: M`, `spouse_ids: [p-ingrid]`),
		"people/ingrid.md": personRecord(`id: p-ingrid`, `name: Ingrid Berg`, `sex: F`, `spouse_ids: [p-gustav]`),
		"people/arne.md":   personRecord(`id: p-arne`, `name: Arne Berg`, `father_id: p-gustav`),
	})

	nodes, links, err := svc.GraphExport(context.Background())
	if err != nil {
		t.Fatalf("GraphExport: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(nodes))
	}

	var spouse, father int
	for _, l := range links {
		switch l.Type {
		case "spouse":
			spouse++
		case "father":
			father++
			if l.Source != "p-arne" || l.Target != "p-gustav" {
				t.Errorf("father link = %+v", l)
			}
		}
	}
	if spouse != 1 {
		t.Errorf("spouse links = %d, want 1 (pair deduplicated)", spouse)
	}
	if father != 1 {
		t.Errorf("father links = %d, want 1", father)
	}
}

func TestQualityReport(t *testing.T) {
	svc, store, db := serviceTestEnv(t)
	seed(t, store, db, map[string][]byte{
		"people/gustav.md": personRecord(`id: p-gustav`, `name: Gustav Berg`, `sex: M`, `born: 1890`, `children_ids: [p-arne]`),
		"people/arne.md":   personRecord(`id: p-arne`, `name: Arne Berg`, `sex: M`, `born: 1920`, `father_id: p-gustav`),
	})

	rep, err := svc.Quality(context.Background())
	if err != nil {
		t.Fatalf("Quality: %v", err)
	}
	if rep.CheckedRecords != 2 {
		t.Errorf("checked = %d, want 2", rep.CheckedRecords)
	}
	if rep.Score <= 0 || rep.Score > 100 {
		t.Errorf("score = %d", rep.Score)
	}
}
