package familyservice

import (
	"context"
	"log/slog"
	"sort"

	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/quality"
)

// Snapshot returns the current graph snapshot, rebuilding it when a
// write or a watcher event has marked the cached one stale. Callers keep
// the snapshot they were handed; a concurrent rebuild swaps the cache
// without touching graphs already in use.
func (s *Service) Snapshot(_ context.Context) (*graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && !s.stale {
		return s.snap, nil
	}
	persons, err := s.db.AllPersons()
	if err != nil {
		return nil, err
	}
	s.snap = graph.Build(persons)
	s.stale = false
	s.logger.Debug("familyservice: snapshot rebuilt", slog.Int("persons", len(persons)))
	return s.snap, nil
}

// Invalidate marks the cached snapshot stale. The next query rebuilds.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// DefaultGenerations returns the traversal depth used when a caller
// passes no explicit limit.
func (s *Service) DefaultGenerations() int {
	return s.opts.DefaultGenerations
}

// Ancestors expands upward from the given id. Negative maxGen means
// unlimited; zero returns only the root.
func (s *Service) Ancestors(ctx context.Context, id string, maxGen int, opts graph.TraversalOptions) (*graph.Traversal, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.Ancestors(id, maxGen, opts), nil
}

// Descendants expands downward from the given id.
func (s *Service) Descendants(ctx context.Context, id string, maxGen int) (*graph.Traversal, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.Descendants(id, maxGen), nil
}

// Family unions ancestors, descendants, and optionally the spouses of
// every visited person.
func (s *Service) Family(ctx context.Context, id string, maxGen int, includeSpouses bool) (*graph.Traversal, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.FullFamily(id, maxGen, includeSpouses), nil
}

// Siblings returns the persons sharing at least one parent with the id.
func (s *Service) Siblings(ctx context.Context, id string) (*graph.Traversal, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.Siblings(id), nil
}

// EffectiveParents applies the biological, neutral, adoptive fallback
// order. The second result is false when the id names no snapshot node.
func (s *Service) EffectiveParents(ctx context.Context, id string) ([]graph.Edge, bool, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	if g.Node(id) == nil {
		return nil, false, nil
	}
	return g.EffectiveParents(id), true, nil
}

// GraphNode is one exported node for rendering collaborators.
type GraphNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Sex  string `json:"sex,omitempty"`
	Born string `json:"born,omitempty"`
}

// GraphLink is one exported typed edge. Parent links run child to parent
// and carry the slot name; spouse links are deduplicated per pair.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// GraphExport flattens the snapshot into the declared nodes and edges.
// Both directions of a reciprocal pair appear when both are declared;
// the export shows what the records say, not a cleaned-up view.
func (s *Service) GraphExport(ctx context.Context) ([]GraphNode, []GraphLink, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	ids := g.IDs()
	nodes := make([]GraphNode, 0, len(ids))
	links := []GraphLink{}
	spousePairs := make(map[string]struct{})

	for _, id := range ids {
		n := g.Node(id)
		p := n.Person
		nodes = append(nodes, GraphNode{
			ID:   id,
			Name: p.Name,
			Path: p.Path,
			Sex:  string(p.Sex),
			Born: p.Born.String(),
		})
		for _, e := range n.Parents {
			links = append(links, GraphLink{Source: id, Target: e.ID, Type: slotLabel(e)})
		}
		for _, sid := range n.Spouses {
			key := pairKey(id, sid)
			if _, seen := spousePairs[key]; seen {
				continue
			}
			spousePairs[key] = struct{}{}
			links = append(links, GraphLink{Source: id, Target: sid, Type: "spouse"})
		}
		for _, cid := range n.Children {
			links = append(links, GraphLink{Source: id, Target: cid, Type: "child"})
		}
	}
	return nodes, links, nil
}

// Orphans lists dangling id references on the current snapshot. Name
// references that fail to resolve are not orphans; they show up in the
// quality report as unresolved or ambiguous findings instead.
func (s *Service) Orphans(ctx context.Context) ([]graph.UnresolvedRef, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := []graph.UnresolvedRef{}
	for _, u := range g.Unresolved() {
		if u.Ref.ID != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

// Quality runs the consistency validator over the current snapshot.
func (s *Service) Quality(ctx context.Context) (*quality.Report, error) {
	g, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return quality.Run(ctx, g, quality.Options{Thresholds: s.opts.Thresholds})
}

// slotLabel names the relationship slot a parent edge was declared in.
func slotLabel(e graph.Edge) string {
	switch e.Kind {
	case models.ParentBiological:
		return string(e.Role)
	case models.ParentStep:
		return "step_" + string(e.Role)
	case models.ParentAdoptive:
		return "adoptive_" + string(e.Role)
	default:
		return "parent"
	}
}

// pairKey builds an order-independent key for a spouse pair.
func pairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "\x00" + pair[1]
}
