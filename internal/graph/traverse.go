package graph

import (
	"github.com/starford/othala/internal/models"
)

// TraversalOptions toggle which parent kinds an upward expansion follows.
// Biological and gender-neutral edges are always followed.
type TraversalOptions struct {
	IncludeStep     bool `json:"include_step"`
	IncludeAdoptive bool `json:"include_adoptive"`
}

// Member is one person reached by a traversal. Generation counts steps
// from the root: positive upward toward ancestors, negative downward
// toward descendants, zero for the root. Spouses carry their partner's
// generation.
type Member struct {
	ID         string         `json:"id"`
	Generation int            `json:"generation"`
	Relation   string         `json:"relation"`
	Person     *models.Person `json:"person"`
}

// Traversal is the result of one graph query. Found reports whether the
// root id names a node in the snapshot; an unknown root is a result, not
// an error. When found, Members begins with the root itself, so an
// isolated person yields a single-member result.
type Traversal struct {
	Root    string   `json:"root"`
	Found   bool     `json:"found"`
	Members []Member `json:"members"`
}

type frame struct {
	id  string
	gen int
}

// Ancestors expands breadth-first upward from root. maxGen limits the
// expansion: 0 returns only the root, negative means unlimited. Step and
// adoptive parents, when included, are boundary leaves: they appear in
// the result but their own ancestors are never expanded. A visited set
// guards against cycles that slipped past validation; a branch closing on
// an already-visited person is abandoned rather than re-expanded.
func (g *Graph) Ancestors(root string, maxGen int, opts TraversalOptions) *Traversal {
	out := &Traversal{Root: root}
	node := g.nodes[root]
	if node == nil {
		return out
	}
	out.Found = true
	out.Members = append(out.Members, Member{ID: root, Relation: "root", Person: node.Person})

	visited := map[string]struct{}{root: {}}
	queue := []frame{{root, 0}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if maxGen >= 0 && f.gen >= maxGen {
			continue
		}
		for _, e := range g.nodes[f.id].Parents {
			switch e.Kind {
			case models.ParentStep:
				if !opts.IncludeStep {
					continue
				}
			case models.ParentAdoptive:
				if !opts.IncludeAdoptive {
					continue
				}
			}
			if _, seen := visited[e.ID]; seen {
				continue
			}
			pn := g.nodes[e.ID]
			if pn == nil {
				continue
			}
			visited[e.ID] = struct{}{}
			out.Members = append(out.Members, Member{ID: e.ID, Generation: f.gen + 1, Relation: string(e.Kind), Person: pn.Person})
			if e.Kind == models.ParentBiological || e.Kind == models.ParentNeutral {
				queue = append(queue, frame{e.ID, f.gen + 1})
			}
		}
	}
	return out
}

// Descendants expands breadth-first downward from root over the derived
// child index, so step and adoptive children appear alongside declared
// ones. Generations are negative: children are generation -1. maxGen 0
// returns only the root; negative maxGen means unlimited.
func (g *Graph) Descendants(root string, maxGen int) *Traversal {
	out := &Traversal{Root: root}
	node := g.nodes[root]
	if node == nil {
		return out
	}
	out.Found = true
	out.Members = append(out.Members, Member{ID: root, Relation: "root", Person: node.Person})
	g.expandDown(out, root, maxGen, map[string]struct{}{root: {}})
	return out
}

func (g *Graph) expandDown(out *Traversal, root string, maxGen int, visited map[string]struct{}) {
	queue := []frame{{root, 0}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if maxGen >= 0 && -f.gen >= maxGen {
			continue
		}
		for _, cid := range g.childIndex[f.id] {
			if _, seen := visited[cid]; seen {
				continue
			}
			cn := g.nodes[cid]
			if cn == nil {
				continue
			}
			visited[cid] = struct{}{}
			out.Members = append(out.Members, Member{ID: cid, Generation: f.gen - 1, Relation: "child", Person: cn.Person})
			queue = append(queue, frame{cid, f.gen - 1})
		}
	}
}

// FullFamily unions the ancestors and descendants of root and, when
// includeSpouses is set, the spouses of every visited person. Spouses are
// attached at their partner's generation and are not expanded further.
// Spouse edges are treated symmetrically: a marriage declared on either
// side attaches on both.
func (g *Graph) FullFamily(root string, maxGen int, includeSpouses bool) *Traversal {
	out := g.Ancestors(root, maxGen, TraversalOptions{})
	if !out.Found {
		return out
	}
	visited := make(map[string]struct{}, len(out.Members))
	for _, m := range out.Members {
		visited[m.ID] = struct{}{}
	}
	g.expandDown(out, root, maxGen, visited)

	if includeSpouses {
		partners := out.Members
		for _, m := range partners {
			for _, sid := range g.spouseIndex[m.ID] {
				if _, seen := visited[sid]; seen {
					continue
				}
				sn := g.nodes[sid]
				if sn == nil {
					continue
				}
				visited[sid] = struct{}{}
				out.Members = append(out.Members, Member{ID: sid, Generation: m.Generation, Relation: "spouse", Person: sn.Person})
			}
		}
	}
	return out
}

// Siblings returns the persons sharing at least one parent with root.
// Parenthood here means the biological and gender-neutral slots plus the
// inverse of declared children; step and adoptive ties do not make
// siblings.
func (g *Graph) Siblings(root string) *Traversal {
	out := &Traversal{Root: root}
	node := g.nodes[root]
	if node == nil {
		return out
	}
	out.Found = true
	out.Members = append(out.Members, Member{ID: root, Relation: "root", Person: node.Person})

	mine := make(map[string]struct{})
	for _, pid := range g.parentIndex[root] {
		mine[pid] = struct{}{}
	}
	if len(mine) == 0 {
		return out
	}
	for _, sid := range g.IDs() {
		if sid == root {
			continue
		}
		for _, pid := range g.parentIndex[sid] {
			if _, shared := mine[pid]; shared {
				out.Members = append(out.Members, Member{ID: sid, Relation: "sibling", Person: g.nodes[sid].Person})
				break
			}
		}
	}
	return out
}

// EffectiveParents applies the parent-resolution policy: the biological
// father/mother slots when any are present, else the gender-neutral
// parents, else the adoptive parents. Step-parents never qualify. This is
// the single named policy for "who raised the line"; raw edge listings on
// the node still show every declared parent.
func (g *Graph) EffectiveParents(root string) []Edge {
	node := g.nodes[root]
	if node == nil {
		return nil
	}
	var bio, neutral, adoptive []Edge
	for _, e := range node.Parents {
		switch e.Kind {
		case models.ParentBiological:
			bio = append(bio, e)
		case models.ParentNeutral:
			neutral = append(neutral, e)
		case models.ParentAdoptive:
			adoptive = append(adoptive, e)
		}
	}
	switch {
	case len(bio) > 0:
		return bio
	case len(neutral) > 0:
		return neutral
	default:
		return adoptive
	}
}
