package linker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/record"
)

// HealRequest scopes a reciprocity repair pass. An empty Paths list scans
// the whole vault; a non-empty list restricts the scan to those source
// records (the per-record mode used after watcher events).
type HealRequest struct {
	Paths    []string
	DryRun   bool
	Progress func(done, total int)
}

// HealResult is the outcome of a repair pass.
type HealResult struct {
	Result
	Checked int `json:"checked"`
}

// Heal walks the scoped records and restores missing reciprocals for
// every declared edge whose target resolves to exactly one person.
// Conflicts are reported, never repaired; unresolved and ambiguous
// references are skipped, since guessing is worse than divergence.
// Records are processed sequentially; ctx is honoured between records,
// never mid-write.
func (l *Linker) Heal(ctx context.Context, req HealRequest) (*HealResult, error) {
	persons, err := l.scope(req.Paths)
	if err != nil {
		return nil, fmt.Errorf("linker: heal: %w", err)
	}

	out := &HealResult{}
	for i, p := range persons {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if p.ID != "" {
			out.Checked++
			l.healPerson(&out.Result, p, req.DryRun)
		}
		if req.Progress != nil {
			req.Progress(i+1, len(persons))
		}
	}

	l.logger.Info("linker: heal finished",
		slog.Int("checked", out.Checked),
		slog.Bool("dry_run", req.DryRun),
		slog.Int("writes", len(out.Writes)),
		slog.Int("conflicts", len(out.Conflicts)),
		slog.Int("failures", len(out.Failures)))
	return out, nil
}

// healPerson re-propagates every declared edge of one source record.
// applyAdd carries the idempotency, so an intact reciprocal is a no-op.
func (l *Linker) healPerson(res *Result, p *models.Person, dryRun bool) {
	for _, rt := range models.RelTypes {
		for _, ref := range record.SlotRefs(p, rt) {
			tid := ref.ID
			if tid == "" {
				r, err := l.idx.ResolveName(ref.Name)
				if err != nil || r.Status != index.ResolutionFound || r.ID == "" {
					continue
				}
				tid = r.ID
			}
			if tid == p.ID {
				continue // self-reference is a validator finding
			}
			ch := Change{SourceID: p.ID, Type: rt, New: []string{tid}, DryRun: dryRun}
			l.applyAdd(res, ch, p, tid)
		}
	}
}

// OrphanRequest scopes a dangling-id cleanup pass.
type OrphanRequest struct {
	Paths    []string
	DryRun   bool
	Progress func(done, total int)
}

// OrphanRemoval is one dangling id reference scheduled for removal.
type OrphanRemoval struct {
	Path    string         `json:"path"`
	ID      string         `json:"id,omitempty"`
	Slot    models.RelType `json:"slot"`
	Ref     models.Ref     `json:"ref"`
	Applied bool           `json:"applied"`
}

// OrphanResult lists planned or applied removals per record.
type OrphanResult struct {
	Removals []OrphanRemoval `json:"removals,omitempty"`
	Failures []Failure       `json:"failures,omitempty"`
	Checked  int             `json:"checked"`
}

// ClearOrphans removes id references that no longer resolve to any
// record. Deletions never do this implicitly; this is the one explicit,
// previewable cleanup path. Name-form references are left alone: a name
// that stopped resolving is an unresolved-reference finding, not an
// orphan.
func (l *Linker) ClearOrphans(ctx context.Context, req OrphanRequest) (*OrphanResult, error) {
	persons, err := l.scope(req.Paths)
	if err != nil {
		return nil, fmt.Errorf("linker: clear orphans: %w", err)
	}

	out := &OrphanResult{}
	for i, p := range persons {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Checked++
		l.clearPersonOrphans(out, p, req.DryRun)
		if req.Progress != nil {
			req.Progress(i+1, len(persons))
		}
	}

	l.logger.Info("linker: orphan clear finished",
		slog.Int("checked", out.Checked),
		slog.Bool("dry_run", req.DryRun),
		slog.Int("removals", len(out.Removals)),
		slog.Int("failures", len(out.Failures)))
	return out, nil
}

// clearPersonOrphans rewrites one record without its dangling id refs.
// The record is re-read from the vault so an edit that raced the scan is
// respected.
func (l *Linker) clearPersonOrphans(out *OrphanResult, p *models.Person, dryRun bool) {
	target, _, raw, err := l.readRecord(p.Path)
	if err != nil {
		out.Failures = append(out.Failures, Failure{TargetID: p.ID, TargetPath: p.Path, Reason: "read failed: " + err.Error()})
		return
	}

	var changes []record.Change
	var planned []OrphanRemoval
	for _, rt := range models.RelTypes {
		current := record.SlotRefs(target, rt)
		var remaining []models.Ref
		dropped := false
		for _, r := range current {
			if r.ID != "" {
				if _, ok, rerr := l.idx.ResolveID(r.ID); rerr == nil && !ok {
					planned = append(planned, OrphanRemoval{Path: p.Path, ID: target.ID, Slot: rt, Ref: r})
					dropped = true
					continue
				}
			}
			remaining = append(remaining, r)
		}
		if dropped {
			changes = append(changes, l.SlotChanges(rt, remaining)...)
		}
	}
	if len(planned) == 0 {
		return
	}
	if dryRun {
		out.Removals = append(out.Removals, planned...)
		return
	}
	if err := l.writeRecord(p.Path, raw, changes); err != nil {
		out.Failures = append(out.Failures, Failure{TargetID: p.ID, TargetPath: p.Path, Reason: "write failed: " + err.Error()})
		return
	}
	for i := range planned {
		planned[i].Applied = true
	}
	out.Removals = append(out.Removals, planned...)
}

// scope lists the indexed persons a batch operates on, in path order.
func (l *Linker) scope(paths []string) ([]*models.Person, error) {
	persons, err := l.idx.AllPersons()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return persons, nil
	}
	want := toSet(paths)
	var out []*models.Person
	for _, p := range persons {
		if _, ok := want[p.Path]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
