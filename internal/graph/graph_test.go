package graph

import (
	"testing"

	"github.com/starford/othala/internal/models"
)

func person(path, id, name string) *models.Person {
	return &models.Person{Path: path, ID: id, Name: name}
}

func TestBuild_NodesKeyedByID(t *testing.T) {
	anna := person("people/anna.md", "p1", "Anna Lind")
	noID := person("people/mystery.md", "", "Mystery Man")

	g := Build([]*models.Person{anna, noID})

	if g.Size() != 1 {
		t.Fatalf("Size = %d, want 1", g.Size())
	}
	if g.Node("p1") == nil {
		t.Error("expected node for p1")
	}
	if len(g.Persons()) != 2 {
		t.Errorf("Persons = %d, want 2 (id-less records stay visible)", len(g.Persons()))
	}
}

func TestBuild_DuplicateIDFirstPathWins(t *testing.T) {
	late := person("z/copy.md", "p1", "Copy")
	early := person("a/original.md", "p1", "Original")

	g := Build([]*models.Person{late, early})

	if g.Size() != 1 {
		t.Fatalf("Size = %d, want 1", g.Size())
	}
	if got := g.Node("p1").Person.Path; got != "a/original.md" {
		t.Errorf("winner = %q, want lowest path a/original.md", got)
	}
	dups := g.Duplicates()
	if len(dups) != 1 {
		t.Fatalf("expected 1 duplicate, got %d", len(dups))
	}
	if dups[0].WinnerPath != "a/original.md" || dups[0].LoserPath != "z/copy.md" {
		t.Errorf("duplicate = %+v", dups[0])
	}
}

func TestBuild_ResolvesByIDAndName(t *testing.T) {
	father := person("people/erik.md", "p-erik", "Erik Lind")
	byID := person("people/a.md", "p-a", "A")
	byID.Father = models.Ref{ID: "p-erik"}
	byName := person("people/b.md", "p-b", "B")
	byName.Father = models.Ref{Name: "Erik Lind"}
	byBasename := person("people/c.md", "p-c", "C")
	byBasename.Father = models.Ref{Name: "erik"}

	g := Build([]*models.Person{father, byID, byName, byBasename})

	for _, id := range []string{"p-a", "p-b", "p-c"} {
		n := g.Node(id)
		if len(n.Parents) != 1 || n.Parents[0].ID != "p-erik" {
			t.Errorf("%s parents = %+v, want edge to p-erik", id, n.Parents)
		}
	}
	if len(g.Unresolved()) != 0 {
		t.Errorf("unexpected unresolved refs: %+v", g.Unresolved())
	}
}

func TestBuild_UnresolvedNotFound(t *testing.T) {
	p := person("people/a.md", "p-a", "A")
	p.Mother = models.Ref{ID: "missing-id"}
	p.Spouses = []models.Ref{{Name: "Nobody Known"}}

	g := Build([]*models.Person{p})

	un := g.Unresolved()
	if len(un) != 2 {
		t.Fatalf("expected 2 unresolved, got %d: %+v", len(un), un)
	}
	for _, u := range un {
		if u.Reason != ReasonNotFound {
			t.Errorf("reason = %q, want %q", u.Reason, ReasonNotFound)
		}
		if u.SourcePath != "people/a.md" || u.SourceID != "p-a" {
			t.Errorf("source = %q/%q", u.SourcePath, u.SourceID)
		}
	}
	if len(g.Node("p-a").Parents) != 0 {
		t.Error("unresolved edge must not enter the node")
	}
}

func TestBuild_AmbiguousNameNeverGuessed(t *testing.T) {
	smith1 := person("a/john-smith.md", "", "John Smith")
	smith2 := person("b/john-smith-2.md", "", "John Smith")
	src := person("c/kid.md", "p-kid", "Kid")
	src.Father = models.Ref{Name: "John Smith", Raw: "[[John Smith]]"}

	g := Build([]*models.Person{smith1, smith2, src})

	if len(g.Node("p-kid").Parents) != 0 {
		t.Fatal("ambiguous reference must not become an edge")
	}
	un := g.Unresolved()
	if len(un) != 1 {
		t.Fatalf("expected 1 unresolved, got %d", len(un))
	}
	if un[0].Reason != ReasonAmbiguous {
		t.Errorf("reason = %q, want %q", un[0].Reason, ReasonAmbiguous)
	}
	if len(un[0].Candidates) != 2 {
		t.Errorf("candidates = %v, want both John Smith paths", un[0].Candidates)
	}
}

func TestBuild_TargetWithoutID(t *testing.T) {
	noID := person("people/granny.md", "", "Granny")
	src := person("people/kid.md", "p-kid", "Kid")
	src.Mother = models.Ref{Name: "Granny"}

	g := Build([]*models.Person{noID, src})

	un := g.Unresolved()
	if len(un) != 1 || un[0].Reason != ReasonTargetNoID {
		t.Fatalf("unresolved = %+v, want single target_no_id", un)
	}
	if len(un[0].Candidates) != 1 || un[0].Candidates[0] != "people/granny.md" {
		t.Errorf("candidates = %v", un[0].Candidates)
	}
}

func TestBuild_ChildIndexUnion(t *testing.T) {
	parent := person("people/parent.md", "p-par", "Parent")
	parent.Children = []models.Ref{{ID: "p-declared"}}
	declared := person("people/declared.md", "p-declared", "Declared Child")
	inverse := person("people/inverse.md", "p-inv", "Inverse Child")
	inverse.Father = models.Ref{ID: "p-par"}

	g := Build([]*models.Person{parent, declared, inverse})

	kids := g.ChildrenOf("p-par")
	if len(kids) != 2 {
		t.Fatalf("ChildrenOf = %v, want declared + inverse", kids)
	}
	if kids[0] != "p-declared" || kids[1] != "p-inv" {
		t.Errorf("ChildrenOf = %v, want sorted [p-declared p-inv]", kids)
	}
	// Declared children on the node stay as declared.
	if n := g.Node("p-par"); len(n.Children) != 1 || n.Children[0] != "p-declared" {
		t.Errorf("node children = %v, want only the declared edge", n.Children)
	}
}

func TestBuild_DeterministicAcrossInputOrder(t *testing.T) {
	mk := func() []*models.Person {
		a := person("a.md", "pa", "A")
		a.Father = models.Ref{ID: "pb"}
		b := person("b.md", "pb", "B")
		c := person("c.md", "pb", "B duplicate")
		return []*models.Person{a, b, c}
	}
	fwd := mk()
	rev := mk()
	rev[0], rev[2] = rev[2], rev[0]

	g1 := Build(fwd)
	g2 := Build(rev)

	if g1.Node("pb").Person.Path != g2.Node("pb").Person.Path {
		t.Error("id winner depends on input order")
	}
	if len(g1.Duplicates()) != 1 || len(g2.Duplicates()) != 1 {
		t.Error("duplicate accounting depends on input order")
	}
}
