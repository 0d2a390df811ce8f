// Package graph builds immutable relationship snapshots from person
// records and answers generation-limited traversal queries over them.
//
// A snapshot resolves every declared reference once, at build time,
// against the person set it was built from. Traversals never touch the
// index or the vault; they see one consistent view.
package graph

import (
	"sort"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/record"
)

// Edge is one resolved, typed parent edge.
type Edge struct {
	Kind models.ParentKind `json:"kind"`
	Role models.Role       `json:"role,omitempty"`
	ID   string            `json:"id"`
}

// Node is one person in a snapshot plus its resolved edges. Children
// holds only the declared children; the derived child index on the Graph
// additionally carries the inverses of parent edges.
type Node struct {
	Person   *models.Person `json:"person"`
	Parents  []Edge         `json:"parents,omitempty"`
	Spouses  []string       `json:"spouses,omitempty"`
	Children []string       `json:"children,omitempty"`
}

// UnresolvedReason classifies why a reference failed to resolve.
type UnresolvedReason string

const (
	ReasonNotFound   UnresolvedReason = "not_found"
	ReasonAmbiguous  UnresolvedReason = "ambiguous"
	ReasonTargetNoID UnresolvedReason = "target_no_id"
)

// UnresolvedRef is a declared reference that did not resolve to exactly
// one id-bearing record. Unresolved references are retained for
// reporting, excluded from traversal, and never resolved by guessing.
type UnresolvedRef struct {
	SourcePath string           `json:"source_path"`
	SourceID   string           `json:"source_id,omitempty"`
	Slot       models.RelType   `json:"slot"`
	Ref        models.Ref       `json:"ref"`
	Reason     UnresolvedReason `json:"reason"`
	Candidates []string         `json:"candidates,omitempty"`
}

// DuplicateID records two files declaring the same canonical id. The
// record at the lowest path keeps the id in the snapshot.
type DuplicateID struct {
	ID         string `json:"id"`
	WinnerPath string `json:"winner_path"`
	LoserPath  string `json:"loser_path"`
}

// Graph is an immutable family-graph snapshot.
type Graph struct {
	builtAt time.Time
	persons []*models.Person
	nodes   map[string]*Node

	// childIndex unions declared children with the inverses of every
	// parent-kind edge. parentIndex carries only sibling-making
	// parenthood: biological, gender-neutral, and declared children.
	childIndex  map[string][]string
	parentIndex map[string][]string
	spouseIndex map[string][]string

	unresolved []UnresolvedRef
	duplicates []DuplicateID

	resolver *refResolver
}

// Build constructs a snapshot from a set of person records. Input order
// does not matter; records are processed in path order so id claims and
// reference resolution are deterministic.
func Build(persons []*models.Person) *Graph {
	sorted := make([]*models.Person, len(persons))
	copy(sorted, persons)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	g := &Graph{
		builtAt:     time.Now().UTC(),
		persons:     sorted,
		nodes:       make(map[string]*Node),
		childIndex:  make(map[string][]string),
		parentIndex: make(map[string][]string),
		spouseIndex: make(map[string][]string),
	}

	// Claim canonical ids, lowest path first. Losers of a duplicate id
	// are recorded and otherwise shadowed.
	owner := make(map[string]*models.Person)
	for _, p := range sorted {
		if p.ID == "" {
			continue
		}
		if w, dup := owner[p.ID]; dup {
			g.duplicates = append(g.duplicates, DuplicateID{ID: p.ID, WinnerPath: w.Path, LoserPath: p.Path})
			continue
		}
		owner[p.ID] = p
		g.nodes[p.ID] = &Node{Person: p}
	}

	// Name lookup spans every record, display name and file basename
	// alike, so ambiguity surfaces even when a candidate has no id.
	byName := make(map[string][]*models.Person)
	for _, p := range sorted {
		keys := []string{strings.ToLower(record.Basename(p.Path))}
		if n := strings.ToLower(p.Name); n != "" && n != keys[0] {
			keys = append(keys, n)
		}
		for _, k := range keys {
			byName[k] = append(byName[k], p)
		}
	}
	r := &refResolver{owner: owner, byName: byName}
	g.resolver = r

	for _, p := range sorted {
		if p.ID != "" && owner[p.ID] != p {
			continue // shadowed duplicate: the id clash is the finding
		}
		node := g.nodes[p.ID] // nil for id-less records

		for _, pr := range p.ParentRefs() {
			id, unres := r.resolve(pr.Ref)
			if unres != nil {
				g.addUnresolved(p, pr.Slot(), *unres)
				continue
			}
			if node == nil {
				continue
			}
			node.Parents = append(node.Parents, Edge{Kind: pr.Kind, Role: pr.Role, ID: id})
			g.childIndex[id] = appendUnique(g.childIndex[id], p.ID)
			if pr.Kind == models.ParentBiological || pr.Kind == models.ParentNeutral {
				g.parentIndex[p.ID] = appendUnique(g.parentIndex[p.ID], id)
			}
		}

		for _, ref := range p.Spouses {
			id, unres := r.resolve(ref)
			if unres != nil {
				g.addUnresolved(p, models.RelSpouse, *unres)
				continue
			}
			if node == nil {
				continue
			}
			node.Spouses = appendUnique(node.Spouses, id)
			g.spouseIndex[p.ID] = appendUnique(g.spouseIndex[p.ID], id)
			g.spouseIndex[id] = appendUnique(g.spouseIndex[id], p.ID)
		}

		for _, ref := range p.Children {
			id, unres := r.resolve(ref)
			if unres != nil {
				g.addUnresolved(p, models.RelChild, *unres)
				continue
			}
			if node == nil {
				continue
			}
			node.Children = appendUnique(node.Children, id)
			g.childIndex[p.ID] = appendUnique(g.childIndex[p.ID], id)
			g.parentIndex[id] = appendUnique(g.parentIndex[id], p.ID)
		}
	}

	for _, m := range []map[string][]string{g.childIndex, g.parentIndex, g.spouseIndex} {
		for k := range m {
			sort.Strings(m[k])
		}
	}
	return g
}

func (g *Graph) addUnresolved(p *models.Person, slot models.RelType, u UnresolvedRef) {
	u.SourcePath = p.Path
	u.SourceID = p.ID
	u.Slot = slot
	g.unresolved = append(g.unresolved, u)
}

// refResolver resolves references against the snapshot's own person set,
// id field first, then display name or basename.
type refResolver struct {
	owner  map[string]*models.Person
	byName map[string][]*models.Person
}

func (r *refResolver) resolve(ref models.Ref) (string, *UnresolvedRef) {
	if ref.ID != "" {
		if _, ok := r.owner[ref.ID]; ok {
			return ref.ID, nil
		}
		return "", &UnresolvedRef{Ref: ref, Reason: ReasonNotFound}
	}
	cands := r.byName[strings.ToLower(ref.Name)]
	switch len(cands) {
	case 0:
		return "", &UnresolvedRef{Ref: ref, Reason: ReasonNotFound}
	case 1:
		if cands[0].ID == "" {
			return "", &UnresolvedRef{Ref: ref, Reason: ReasonTargetNoID, Candidates: []string{cands[0].Path}}
		}
		return cands[0].ID, nil
	default:
		paths := make([]string, len(cands))
		for i, c := range cands {
			paths[i] = c.Path
		}
		return "", &UnresolvedRef{Ref: ref, Reason: ReasonAmbiguous, Candidates: paths}
	}
}

func appendUnique(s []string, v string) []string {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

// BuiltAt returns the snapshot construction time.
func (g *Graph) BuiltAt() time.Time { return g.builtAt }

// Size returns the number of id-bearing nodes in the snapshot.
func (g *Graph) Size() int { return len(g.nodes) }

// Node returns the node for a canonical id, or nil when the id is not in
// the snapshot.
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// IDs returns every node id in sorted order.
func (g *Graph) IDs() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Persons returns every record the snapshot was built from, in path
// order, including records without a canonical id.
func (g *Graph) Persons() []*models.Person { return g.persons }

// Unresolved returns the references that failed to resolve.
func (g *Graph) Unresolved() []UnresolvedRef { return g.unresolved }

// Duplicates returns the canonical-id clashes found at build.
func (g *Graph) Duplicates() []DuplicateID { return g.duplicates }

// ChildrenOf returns the derived children of a person: declared children
// unioned with the inverses of every parent-kind edge, sorted.
func (g *Graph) ChildrenOf(id string) []string { return g.childIndex[id] }

// ResolveRef resolves a reference the way edges were resolved at build
// time: id first, then unique display name or basename. The second result
// is false for unknown, ambiguous, and id-less targets.
func (g *Graph) ResolveRef(ref models.Ref) (string, bool) {
	id, unres := g.resolver.resolve(ref)
	if unres != nil {
		return "", false
	}
	return id, true
}
