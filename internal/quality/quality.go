// Package quality runs batch consistency analysis over a family-graph
// snapshot: cycles, reciprocity divergence, orphan and ambiguous
// references, temporal and role sanity, completeness. It produces a
// severity-classified finding list and an aggregate 0-100 score, and it
// never mutates anything.
package quality

import (
	"context"
	"math"
	"time"

	"github.com/starford/othala/internal/graph"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Kind identifies a check. The strings are part of the report format and
// must stay stable.
type Kind string

const (
	KindDuplicateID      Kind = "duplicate_id"
	KindSelfReference    Kind = "self_reference"
	KindParentCycle      Kind = "parent_cycle"
	KindNeedsSync        Kind = "needs_sync"
	KindConflict         Kind = "conflict"
	KindOrphanRef        Kind = "orphan_ref"
	KindUnresolvedRef    Kind = "unresolved_ref"
	KindAmbiguousRef     Kind = "ambiguous_ref"
	KindDeathBeforeBirth Kind = "death_before_birth"
	KindImplausibleAge   Kind = "implausible_age"
	KindParentAge        Kind = "parent_age"
	KindBornAfterDeath   Kind = "born_after_parent_death"
	KindRoleMismatch     Kind = "role_mismatch"
	KindDuplicateSpouse  Kind = "duplicate_spouse"
	KindIncomplete       Kind = "incomplete"
)

// Finding is one reported issue.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	IDs      []string `json:"ids,omitempty"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

// Counts aggregates findings by severity.
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Completeness reports the share of records carrying each core attribute,
// as percentages.
type Completeness struct {
	Name   float64 `json:"name"`
	Born   float64 `json:"born"`
	Parent float64 `json:"parent"`
	Sex    float64 `json:"sex"`
}

// Report is the outcome of one analysis run. Findings are ordered
// deterministically: vault-wide checks first, then per-record checks in
// path order.
type Report struct {
	GeneratedAt    time.Time    `json:"generated_at"`
	CheckedRecords int          `json:"checked_records"`
	Findings       []Finding    `json:"findings"`
	Counts         Counts       `json:"counts"`
	Completeness   Completeness `json:"completeness"`
	Score          int          `json:"score"`
}

// Thresholds tune the temporal sanity checks. Zero fields take defaults.
type Thresholds struct {
	MaxAgeYears        int `json:"max_age_years"`
	MinParentAgeYears  int `json:"min_parent_age_years"`
	MaxParentAgeYears  int `json:"max_parent_age_years"`
	MaxAfterDeathYears int `json:"max_after_death_years"`
}

// DefaultThresholds returns the built-in temporal limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxAgeYears:        120,
		MinParentAgeYears:  13,
		MaxParentAgeYears:  70,
		MaxAfterDeathYears: 1,
	}
}

func (th Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if th.MaxAgeYears == 0 {
		th.MaxAgeYears = def.MaxAgeYears
	}
	if th.MinParentAgeYears == 0 {
		th.MinParentAgeYears = def.MinParentAgeYears
	}
	if th.MaxParentAgeYears == 0 {
		th.MaxParentAgeYears = def.MaxParentAgeYears
	}
	if th.MaxAfterDeathYears == 0 {
		th.MaxAfterDeathYears = def.MaxAfterDeathYears
	}
	return th
}

// Options configures a run.
type Options struct {
	Thresholds Thresholds
	Progress   func(done, total int)
}

// Run analyses a snapshot and builds a report. The snapshot is read-only
// input; ctx is honoured between records.
func Run(ctx context.Context, g *graph.Graph, opts Options) (*Report, error) {
	v := &validator{g: g, th: opts.Thresholds.withDefaults()}

	v.duplicateIDs()
	v.unresolvedRefs()
	v.parentCycles()

	persons := g.Persons()
	var fractionSum float64
	var have struct{ name, born, parent, sex int }
	for i, p := range persons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := g.Node(p.ID)
		if n != nil && n.Person != p {
			n = nil // shadowed duplicate: edges belong to the winner
		}
		v.selfReferences(p, n)
		v.reciprocity(p, n)
		v.temporal(p, n)
		v.roleSanity(p, n)
		v.duplicateSpouses(p)

		attrs, missing := completenessOf(p)
		fractionSum += float64(4-len(missing)) / 4
		if attrs.name {
			have.name++
		}
		if attrs.born {
			have.born++
		}
		if attrs.parent {
			have.parent++
		}
		if attrs.sex {
			have.sex++
		}
		if len(missing) > 0 {
			v.add(Finding{
				Kind:     KindIncomplete,
				Severity: SeverityInfo,
				IDs:      idList(p.ID),
				Path:     p.Path,
				Message:  "missing " + joinAnd(missing),
			})
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(persons))
		}
	}

	rep := &Report{
		GeneratedAt:    time.Now().UTC(),
		CheckedRecords: len(persons),
		Findings:       v.findings,
	}
	for _, f := range v.findings {
		switch f.Severity {
		case SeverityError:
			rep.Counts.Errors++
		case SeverityWarning:
			rep.Counts.Warnings++
		default:
			rep.Counts.Infos++
		}
	}

	base := 100.0
	if len(persons) > 0 {
		total := float64(len(persons))
		base = 100 * fractionSum / total
		rep.Completeness = Completeness{
			Name:   100 * float64(have.name) / total,
			Born:   100 * float64(have.born) / total,
			Parent: 100 * float64(have.parent) / total,
			Sex:    100 * float64(have.sex) / total,
		}
	}
	rep.Score = clampScore(int(math.Round(base)) - 10*rep.Counts.Errors - 2*rep.Counts.Warnings)
	return rep, nil
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func idList(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	out := items[0]
	for _, s := range items[1 : len(items)-1] {
		out += ", " + s
	}
	return out + " and " + items[len(items)-1]
}
