// Package linker propagates relationship edits to their reciprocal
// records. It is the only component that writes relationship fields on
// records other than the one being edited, and it never overwrites an
// existing claim: exclusive-slot disagreements are reported as conflicts
// for manual resolution.
package linker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/record"
	"github.com/starford/othala/internal/storage"
)

// Change describes a relationship edit already applied to the source
// record whose reciprocals must now be propagated. Old and New carry
// canonical target ids; the diff between them drives the propagation.
type Change struct {
	SourceID string         `json:"source_id"`
	Type     models.RelType `json:"type"`
	Old      []string       `json:"old,omitempty"`
	New      []string       `json:"new,omitempty"`
	DryRun   bool           `json:"dry_run,omitempty"`
}

// Op distinguishes reciprocal additions from removals.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Write is one planned or applied reciprocal edit. Applied stays false on
// dry runs.
type Write struct {
	TargetID   string         `json:"target_id"`
	TargetPath string         `json:"target_path"`
	Slot       models.RelType `json:"slot"`
	Op         Op             `json:"op"`
	Value      string         `json:"value"`
	Applied    bool           `json:"applied"`
}

// Conflict is an exclusive-slot disagreement: the reciprocal slot already
// names a different person. The existing value is reported and left
// untouched.
type Conflict struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	TargetPath string         `json:"target_path"`
	Slot       models.RelType `json:"slot"`
	Existing   string         `json:"existing"`
}

// Failure is a per-target propagation failure. Failures never abort the
// rest of a batch.
type Failure struct {
	TargetID   string `json:"target_id,omitempty"`
	TargetPath string `json:"target_path,omitempty"`
	Reason     string `json:"reason"`
}

// Result reports everything a propagation did, planned, or refused.
type Result struct {
	Writes    []Write    `json:"writes,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	Failures  []Failure  `json:"failures,omitempty"`
}

// Linker applies reciprocal writes through surgical frontmatter edits.
type Linker struct {
	store  storage.Provider
	idx    index.PersonIndex
	logger *slog.Logger
}

// New creates a Linker.
func New(store storage.Provider, idx index.PersonIndex, logger *slog.Logger) *Linker {
	return &Linker{store: store, idx: idx, logger: logger}
}

// ApplyChange diffs Old against New and propagates each addition and
// removal to the affected target record. The operation is idempotent:
// applying the same change twice produces no further writes. Each target
// record is written at most once, and a failure on one target does not
// stop propagation to the others.
func (l *Linker) ApplyChange(ctx context.Context, ch Change) (*Result, error) {
	if ch.SourceID == "" {
		return nil, fmt.Errorf("linker: source id required")
	}
	if record.IDField(ch.Type) == "" {
		return nil, fmt.Errorf("linker: unknown relationship type %q", ch.Type)
	}

	srcPath, ok, err := l.idx.ResolveID(ch.SourceID)
	if err != nil {
		return nil, fmt.Errorf("linker: resolve source: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("linker: source %s: %w", ch.SourceID, apperr.ErrNotFound)
	}
	source, _, _, err := l.readRecord(srcPath)
	if err != nil {
		return nil, fmt.Errorf("linker: read source: %w", err)
	}
	// The file may have moved or lost its id since the index lookup.
	if source.ID == "" {
		source.ID = ch.SourceID
	}

	added, removed := diff(ch.Old, ch.New)
	res := &Result{}
	for _, tid := range added {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		l.applyAdd(res, ch, source, tid)
	}
	for _, tid := range removed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		l.applyRemove(res, ch, source, tid)
	}

	l.logger.Info("linker: change propagated",
		slog.String("source", ch.SourceID),
		slog.String("type", string(ch.Type)),
		slog.Bool("dry_run", ch.DryRun),
		slog.Int("writes", len(res.Writes)),
		slog.Int("conflicts", len(res.Conflicts)),
		slog.Int("failures", len(res.Failures)))
	return res, nil
}

// applyAdd links source into the reciprocal slot of one added target.
func (l *Linker) applyAdd(res *Result, ch Change, source *models.Person, targetID string) {
	if targetID == source.ID {
		res.Failures = append(res.Failures, Failure{TargetID: targetID, Reason: "self-reference"})
		return
	}
	path, ok, err := l.idx.ResolveID(targetID)
	if err != nil || !ok {
		res.Failures = append(res.Failures, Failure{TargetID: targetID, Reason: "target not found"})
		return
	}
	target, _, raw, err := l.readRecord(path)
	if err != nil {
		res.Failures = append(res.Failures, Failure{TargetID: targetID, TargetPath: path, Reason: "read failed: " + err.Error()})
		return
	}

	slot := reciprocalSlot(ch.Type, source)
	current := record.SlotRefs(target, slot)
	if l.present(current, source.ID) {
		return // already linked
	}
	if slot.Exclusive() && len(current) > 0 {
		res.Conflicts = append(res.Conflicts, Conflict{
			SourceID:   source.ID,
			TargetID:   targetID,
			TargetPath: path,
			Slot:       slot,
			Existing:   existingText(current[0]),
		})
		return
	}

	w := Write{TargetID: targetID, TargetPath: path, Slot: slot, Op: OpAdd, Value: source.ID}
	if ch.DryRun {
		res.Writes = append(res.Writes, w)
		return
	}
	sourceRef := models.Ref{ID: source.ID, Name: source.Name}
	if err := l.writeRecord(path, raw, l.SlotChanges(slot, append(current, sourceRef))); err != nil {
		res.Failures = append(res.Failures, Failure{TargetID: targetID, TargetPath: path, Reason: "write failed: " + err.Error()})
		return
	}
	w.Applied = true
	res.Writes = append(res.Writes, w)
}

// applyRemove unlinks source from the reciprocal slots of one removed
// target. A target that no longer exists is a no-op: the dangling
// reference on the source side is the validator's finding, not ours.
func (l *Linker) applyRemove(res *Result, ch Change, source *models.Person, targetID string) {
	path, ok, err := l.idx.ResolveID(targetID)
	if err != nil || !ok {
		return
	}
	target, _, raw, err := l.readRecord(path)
	if err != nil {
		res.Failures = append(res.Failures, Failure{TargetID: targetID, TargetPath: path, Reason: "read failed: " + err.Error()})
		return
	}

	var changes []record.Change
	var planned []Write
	for _, slot := range removalSlots(ch.Type) {
		current := record.SlotRefs(target, slot)
		var remaining []models.Ref
		found := false
		for _, r := range current {
			if l.refersTo(r, source.ID) {
				found = true
				continue
			}
			remaining = append(remaining, r)
		}
		if !found {
			continue
		}
		changes = append(changes, l.SlotChanges(slot, remaining)...)
		planned = append(planned, Write{TargetID: targetID, TargetPath: path, Slot: slot, Op: OpRemove, Value: source.ID})
	}
	if len(planned) == 0 {
		return // idempotent: source was not present
	}
	if ch.DryRun {
		res.Writes = append(res.Writes, planned...)
		return
	}
	if err := l.writeRecord(path, raw, changes); err != nil {
		res.Failures = append(res.Failures, Failure{TargetID: targetID, TargetPath: path, Reason: "write failed: " + err.Error()})
		return
	}
	for i := range planned {
		planned[i].Applied = true
	}
	res.Writes = append(res.Writes, planned...)
}

// reciprocalSlot returns the slot on the target record that mirrors an
// edge of type rt declared on the source. Parent-kind edges land in the
// target's children; a child edge lands in the child's parent slot chosen
// by the source's sex; spouse edges are symmetric.
func reciprocalSlot(rt models.RelType, source *models.Person) models.RelType {
	switch {
	case rt.IsParentKind():
		return models.RelChild
	case rt == models.RelChild:
		return record.ParentSlotForSex(source.Sex)
	default:
		return models.RelSpouse
	}
}

// removalSlots lists every slot an unlinked source may occupy on the
// target. A child edge may have been reciprocated into any of the
// biological or gender-neutral parent slots, depending on what the
// source's sex was at link time.
func removalSlots(rt models.RelType) []models.RelType {
	switch {
	case rt.IsParentKind():
		return []models.RelType{models.RelChild}
	case rt == models.RelChild:
		return []models.RelType{models.RelFather, models.RelMother, models.RelParent}
	default:
		return []models.RelType{models.RelSpouse}
	}
}

// present reports whether any reference in refs denotes the person with
// the given canonical id. Name-form references are resolved through the
// index, so an existing wikilink spelling of the same person counts as
// present and is never duplicated.
func (l *Linker) present(refs []models.Ref, id string) bool {
	for _, r := range refs {
		if l.refersTo(r, id) {
			return true
		}
	}
	return false
}

func (l *Linker) refersTo(r models.Ref, id string) bool {
	if r.ID != "" {
		return r.ID == id
	}
	res, err := l.idx.ResolveName(r.Name)
	if err != nil || res.Status != index.ResolutionFound {
		return false
	}
	return res.ID == id
}

// SlotChanges renders a slot's references into its id and display fields.
// References without a canonical id keep wikilink form in the id field,
// so unresolved entries survive a rewrite; the display field is refreshed
// to mirror the slot one-to-one. Exported so the service layer renders a
// source-side slot edit exactly like a reciprocal one.
func (l *Linker) SlotChanges(rt models.RelType, refs []models.Ref) []record.Change {
	idField, displayField := record.IDField(rt), record.DisplayField(rt)
	if len(refs) == 0 {
		return []record.Change{{Field: idField}, {Field: displayField}}
	}
	if rt.Exclusive() {
		r := refs[0]
		return []record.Change{
			{Field: idField, Value: idValue(r)},
			{Field: displayField, Value: parser.Wikilink(l.displayName(r))},
		}
	}
	ids := make([]string, len(refs))
	display := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = idValue(r)
		display[i] = parser.Wikilink(l.displayName(r))
	}
	return []record.Change{
		{Field: idField, Value: ids},
		{Field: displayField, Value: display},
	}
}

func idValue(r models.Ref) string {
	if r.ID != "" {
		return r.ID
	}
	return parser.Wikilink(r.Name)
}

// displayName prefers the reference's own display name. Id-only references
// get their name looked up in the index, so a rewrite upgrades them from
// bare ids to readable wikilinks instead of degrading the display field.
func (l *Linker) displayName(r models.Ref) string {
	if r.Name != "" {
		return r.Name
	}
	if path, ok, err := l.idx.ResolveID(r.ID); err == nil && ok {
		if p, perr := l.idx.GetPerson(path); perr == nil && p != nil && p.Name != "" {
			return p.Name
		}
	}
	return r.ID
}

func existingText(r models.Ref) string {
	switch {
	case r.Raw != "":
		return r.Raw
	case r.ID != "":
		return r.ID
	default:
		return r.Name
	}
}

// readRecord loads and decodes one record from the vault.
func (l *Linker) readRecord(path string) (*models.Person, *parser.Result, []byte, error) {
	data, err := l.store.Read(path)
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, nil, nil, err
	}
	return record.Decode(path, res), res, data, nil
}

// writeRecord applies field changes, persists the file, and refreshes the
// index row so later propagation steps see the new state.
func (l *Linker) writeRecord(path string, data []byte, changes []record.Change) error {
	updated, err := record.Update(data, changes)
	if err != nil {
		return err
	}
	if err := l.store.Write(path, updated); err != nil {
		return err
	}
	res, err := parser.Parse(updated)
	if err != nil {
		return err
	}
	p := record.Decode(path, res)
	p.Checksum = checksum.Sum(updated)
	return l.idx.UpsertPerson(p, res.Body)
}

// diff splits the before and after target sets into additions and
// removals, deduplicating by canonical id and preserving declaration
// order.
func diff(before, after []string) (added, removed []string) {
	beforeSet := toSet(before)
	afterSet := toSet(after)
	seen := make(map[string]struct{})
	for _, id := range after {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := beforeSet[id]; !ok {
			added = append(added, id)
		}
	}
	seen = make(map[string]struct{})
	for _, id := range before {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := afterSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
