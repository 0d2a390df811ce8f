package quality

import (
	"fmt"
	"strings"

	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/models"
)

// validator accumulates findings over one snapshot. All checks are
// independent; each reads the graph and appends findings, nothing else.
type validator struct {
	g        *graph.Graph
	th       Thresholds
	findings []Finding
}

func (v *validator) add(f Finding) { v.findings = append(v.findings, f) }

// label renders a person readably for messages. The IDs field stays
// canonical; labels are for humans.
func (v *validator) label(id string) string {
	if n := v.g.Node(id); n != nil && n.Person.Name != "" {
		return n.Person.Name
	}
	return id
}

func personLabel(p *models.Person) string {
	switch {
	case p.Name != "":
		return p.Name
	case p.ID != "":
		return p.ID
	default:
		return p.Path
	}
}

func (v *validator) duplicateIDs() {
	for _, d := range v.g.Duplicates() {
		v.add(Finding{
			Kind:     KindDuplicateID,
			Severity: SeverityError,
			IDs:      []string{d.ID},
			Path:     d.LoserPath,
			Message:  fmt.Sprintf("canonical id %s is claimed by both %s and %s", d.ID, d.WinnerPath, d.LoserPath),
		})
	}
}

func (v *validator) unresolvedRefs() {
	for _, u := range v.g.Unresolved() {
		f := Finding{Severity: SeverityWarning, IDs: idList(u.SourceID), Path: u.SourcePath}
		switch {
		case u.Reason == graph.ReasonAmbiguous:
			f.Kind = KindAmbiguousRef
			f.Message = fmt.Sprintf("%s slot of %s: %q matches %s", u.Slot, u.SourcePath, refText(u.Ref), joinAnd(u.Candidates))
		case u.Reason == graph.ReasonTargetNoID:
			f.Kind = KindUnresolvedRef
			f.Message = fmt.Sprintf("%s slot of %s: %q resolves to %s, which has no canonical id", u.Slot, u.SourcePath, refText(u.Ref), u.Candidates[0])
		case u.Ref.ID != "":
			f.Kind = KindOrphanRef
			f.Message = fmt.Sprintf("%s slot of %s references missing id %s", u.Slot, u.SourcePath, u.Ref.ID)
		default:
			f.Kind = KindUnresolvedRef
			f.Message = fmt.Sprintf("%s slot of %s: no record matches %q", u.Slot, u.SourcePath, refText(u.Ref))
		}
		v.add(f)
	}
}

func refText(r models.Ref) string {
	switch {
	case r.Raw != "":
		return r.Raw
	case r.ID != "":
		return r.ID
	default:
		return r.Name
	}
}

// parentCycles walks the parent edges the ancestor traversal walks
// (biological and gender-neutral) depth-first with an on-path set. Each
// cycle is reported once, rotated to start at its smallest id, with the
// full chain in the message. Step and adoptive edges cannot make a person
// their own ancestor in the traversals, so they are not walked here.
func (v *validator) parentCycles() {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	seen := make(map[string]struct{})
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		for _, e := range v.g.Node(id).Parents {
			if e.Kind == models.ParentStep || e.Kind == models.ParentAdoptive {
				continue
			}
			switch color[e.ID] {
			case white:
				visit(e.ID)
			case grey:
				v.addCycle(stack, e.ID, seen)
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range v.g.IDs() {
		if color[id] == white {
			visit(id)
		}
	}
}

func (v *validator) addCycle(stack []string, start string, seen map[string]struct{}) {
	i := len(stack) - 1
	for i >= 0 && stack[i] != start {
		i--
	}
	chain := stack[i:]
	if len(chain) < 2 {
		return // a self-edge is a self-reference finding, not a cycle
	}
	min := 0
	for j, id := range chain {
		if id < chain[min] {
			min = j
		}
	}
	canon := append(append([]string(nil), chain[min:]...), chain[:min]...)
	key := strings.Join(canon, "\x00")
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	v.add(Finding{
		Kind:     KindParentCycle,
		Severity: SeverityError,
		IDs:      canon,
		Message:  "parent cycle: " + strings.Join(append(append([]string(nil), canon...), canon[0]), " -> "),
	})
}

func (v *validator) selfReferences(p *models.Person, n *graph.Node) {
	if n == nil {
		return
	}
	report := func(slot string) {
		v.add(Finding{
			Kind:     KindSelfReference,
			Severity: SeverityError,
			IDs:      []string{p.ID},
			Path:     p.Path,
			Message:  fmt.Sprintf("%s references itself in the %s slot", personLabel(p), slot),
		})
	}
	for _, e := range n.Parents {
		if e.ID == p.ID {
			report(parentSlotLabel(e))
		}
	}
	if containsID(n.Spouses, p.ID) {
		report("spouse")
	}
	if containsID(n.Children, p.ID) {
		report("children")
	}
}

// reciprocity checks every resolved declared edge against its reverse
// side. Missing reverse entries are needs-sync warnings (the linker can
// repair them); a child edge whose reverse exclusive slot already names
// someone else is a conflict and needs a human.
func (v *validator) reciprocity(p *models.Person, n *graph.Node) {
	if n == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, e := range n.Parents {
		if e.ID == p.ID {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		if !containsID(v.g.Node(e.ID).Children, p.ID) {
			v.add(Finding{
				Kind:     KindNeedsSync,
				Severity: SeverityWarning,
				IDs:      []string{p.ID, e.ID},
				Path:     p.Path,
				Message:  fmt.Sprintf("%s lists %s as %s; the reciprocal child entry is missing", personLabel(p), v.label(e.ID), parentSlotLabel(e)),
			})
		}
	}

	for _, sid := range n.Spouses {
		if sid == p.ID {
			continue
		}
		if !containsID(v.g.Node(sid).Spouses, p.ID) {
			v.add(Finding{
				Kind:     KindNeedsSync,
				Severity: SeverityWarning,
				IDs:      []string{p.ID, sid},
				Path:     p.Path,
				Message:  fmt.Sprintf("%s lists %s as a spouse; the entry is not reciprocated", personLabel(p), v.label(sid)),
			})
		}
	}

	for _, cid := range n.Children {
		if cid == p.ID {
			continue
		}
		t := v.g.Node(cid)
		if hasParentEdge(t, p.ID) {
			continue
		}
		var role models.Role
		var existing string
		switch p.Sex {
		case models.SexMale:
			role = models.RoleFather
			existing = bioParent(t, models.RoleFather)
		case models.SexFemale:
			role = models.RoleMother
			existing = bioParent(t, models.RoleMother)
		}
		if existing != "" {
			v.add(Finding{
				Kind:     KindConflict,
				Severity: SeverityError,
				IDs:      []string{p.ID, cid, existing},
				Path:     p.Path,
				Message: fmt.Sprintf("%s lists %s as a child, but the %s slot of %s already names %s",
					personLabel(p), v.label(cid), role, v.label(cid), v.label(existing)),
			})
			continue
		}
		v.add(Finding{
			Kind:     KindNeedsSync,
			Severity: SeverityWarning,
			IDs:      []string{p.ID, cid},
			Path:     p.Path,
			Message:  fmt.Sprintf("%s lists %s as a child; the reciprocal parent entry is missing", personLabel(p), v.label(cid)),
		})
	}
}

// temporal runs date sanity checks. Step and adoptive parents are exempt
// from the parent-age checks; their ages carry no biological constraint.
func (v *validator) temporal(p *models.Person, n *graph.Node) {
	if p.Died.Before(p.Born) {
		v.add(Finding{
			Kind:     KindDeathBeforeBirth,
			Severity: SeverityError,
			IDs:      idList(p.ID),
			Path:     p.Path,
			Message:  fmt.Sprintf("%s: death %s precedes birth %s", personLabel(p), p.Died, p.Born),
		})
	}
	if yrs, ok := p.Born.YearsUntil(p.Died); ok && yrs > v.th.MaxAgeYears {
		v.add(Finding{
			Kind:     KindImplausibleAge,
			Severity: SeverityWarning,
			IDs:      idList(p.ID),
			Path:     p.Path,
			Message:  fmt.Sprintf("%s: lifespan of %d years exceeds %d", personLabel(p), yrs, v.th.MaxAgeYears),
		})
	}

	if n == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, e := range n.Parents {
		if e.Kind == models.ParentStep || e.Kind == models.ParentAdoptive || e.ID == p.ID {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		par := v.g.Node(e.ID).Person
		if age, ok := par.Born.YearsUntil(p.Born); ok {
			if age < v.th.MinParentAgeYears {
				v.add(Finding{
					Kind:     KindParentAge,
					Severity: SeverityWarning,
					IDs:      []string{p.ID, e.ID},
					Path:     p.Path,
					Message:  fmt.Sprintf("%s was %d years old at the birth of %s (minimum %d)", v.label(e.ID), age, personLabel(p), v.th.MinParentAgeYears),
				})
			} else if age > v.th.MaxParentAgeYears {
				v.add(Finding{
					Kind:     KindParentAge,
					Severity: SeverityWarning,
					IDs:      []string{p.ID, e.ID},
					Path:     p.Path,
					Message:  fmt.Sprintf("%s was %d years old at the birth of %s (maximum %d)", v.label(e.ID), age, personLabel(p), v.th.MaxParentAgeYears),
				})
			}
		}
		if gap, ok := par.Died.YearsUntil(p.Born); ok && gap > v.th.MaxAfterDeathYears {
			v.add(Finding{
				Kind:     KindBornAfterDeath,
				Severity: SeverityWarning,
				IDs:      []string{p.ID, e.ID},
				Path:     p.Path,
				Message:  fmt.Sprintf("%s was born %d years after the death of parent %s", personLabel(p), gap, v.label(e.ID)),
			})
		}
	}
}

func (v *validator) roleSanity(p *models.Person, n *graph.Node) {
	if n == nil {
		return
	}
	for _, e := range n.Parents {
		if e.Role == "" || e.ID == p.ID {
			continue
		}
		sex := v.g.Node(e.ID).Person.Sex
		if (e.Role == models.RoleFather && sex == models.SexFemale) ||
			(e.Role == models.RoleMother && sex == models.SexMale) {
			v.add(Finding{
				Kind:     KindRoleMismatch,
				Severity: SeverityWarning,
				IDs:      []string{p.ID, e.ID},
				Path:     p.Path,
				Message:  fmt.Sprintf("%s occupies the %s slot of %s but is recorded with sex %s", v.label(e.ID), parentSlotLabel(e), personLabel(p), sex),
			})
		}
	}
}

// duplicateSpouses flags the same person appearing more than once in a
// spouse list. Same-form duplicates collapse at decode; what survives to
// here is the same person under two spellings, caught by resolving each
// entry against the snapshot.
func (v *validator) duplicateSpouses(p *models.Person) {
	if len(p.Spouses) < 2 {
		return
	}
	count := make(map[string]int)
	var order []string
	for _, ref := range p.Spouses {
		id, ok := v.g.ResolveRef(ref)
		if !ok {
			continue
		}
		if count[id] == 0 {
			order = append(order, id)
		}
		count[id]++
	}
	for _, id := range order {
		if count[id] > 1 {
			v.add(Finding{
				Kind:     KindDuplicateSpouse,
				Severity: SeverityWarning,
				IDs:      append(idList(p.ID), id),
				Path:     p.Path,
				Message:  fmt.Sprintf("%s appears %d times in the spouse list of %s", v.label(id), count[id], personLabel(p)),
			})
		}
	}
}

type attrSet struct{ name, born, parent, sex bool }

func completenessOf(p *models.Person) (attrSet, []string) {
	a := attrSet{
		name:   p.Name != "",
		born:   !p.Born.IsZero(),
		parent: len(p.ParentRefs()) > 0,
		sex:    p.Sex != models.SexUnknown,
	}
	var missing []string
	if !a.name {
		missing = append(missing, "name")
	}
	if !a.born {
		missing = append(missing, "birth date")
	}
	if !a.parent {
		missing = append(missing, "parents")
	}
	if !a.sex {
		missing = append(missing, "sex")
	}
	return a, missing
}

func parentSlotLabel(e graph.Edge) string {
	switch e.Kind {
	case models.ParentBiological:
		return string(e.Role)
	case models.ParentNeutral:
		return "parent"
	case models.ParentStep:
		return "step " + string(e.Role)
	default:
		return "adoptive " + string(e.Role)
	}
}

func hasParentEdge(n *graph.Node, id string) bool {
	for _, e := range n.Parents {
		if e.ID == id {
			return true
		}
	}
	return false
}

// bioParent returns the id in a biological parent slot, or "".
func bioParent(n *graph.Node, role models.Role) string {
	for _, e := range n.Parents {
		if e.Kind == models.ParentBiological && e.Role == role {
			return e.ID
		}
	}
	return ""
}

func containsID(s []string, id string) bool {
	for _, e := range s {
		if e == id {
			return true
		}
	}
	return false
}
