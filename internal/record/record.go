// Package record is the typed accessor layer over person-record
// frontmatter. It normalises the several accepted field names and value
// shapes into one in-memory representation, so graph, linker, and
// validation logic never deal with field-naming variance.
package record

import (
	"path/filepath"
	"strings"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
)

// Canonical frontmatter field names. Each relationship slot comes in two
// forms: a display field holding wikilinks and an id field holding
// canonical ids. The id form always wins for the slot.
const (
	FieldType     = "type"
	FieldID       = "id"
	FieldName     = "name"
	FieldSex      = "sex"
	FieldBorn     = "born"
	FieldDied     = "died"
	FieldResearch = "research"
	FieldTags     = "tags"

	FieldFather            = "father"
	FieldFatherID          = "father_id"
	FieldMother            = "mother"
	FieldMotherID          = "mother_id"
	FieldParents           = "parents"
	FieldParentIDs         = "parent_ids"
	FieldStepFathers       = "step_fathers"
	FieldStepFatherIDs     = "step_father_ids"
	FieldStepMothers       = "step_mothers"
	FieldStepMotherIDs     = "step_mother_ids"
	FieldAdoptiveFathers   = "adoptive_fathers"
	FieldAdoptiveFatherIDs = "adoptive_father_ids"
	FieldAdoptiveMothers   = "adoptive_mothers"
	FieldAdoptiveMotherIDs = "adoptive_mother_ids"
	FieldSpouses           = "spouses"
	FieldSpouseIDs         = "spouse_ids"
	FieldChildren          = "children"
	FieldChildrenIDs       = "children_ids"
)

// RecordTypePerson is the frontmatter type marker for person records.
// Files with another explicit type (place, event, source) are not indexed
// by the person engine.
const RecordTypePerson = "person"

// aliases maps each canonical field name to the alternative spellings the
// accessor layer accepts. Lookup order is canonical first, then aliases.
var aliases = map[string][]string{
	FieldType:              {"record_type"},
	FieldID:                {"person_id", "uid"},
	FieldName:              {"full_name", "title"},
	FieldSex:               {"gender"},
	FieldBorn:              {"birth", "birth_date"},
	FieldDied:              {"death", "death_date"},
	FieldResearch:          {"research_level"},
	FieldFather:            {},
	FieldFatherID:          {},
	FieldMother:            {},
	FieldMotherID:          {},
	FieldParents:           {"parent"},
	FieldParentIDs:         {},
	FieldStepFathers:       {"stepfather", "step_father", "stepfathers"},
	FieldStepFatherIDs:     {"stepfather_ids"},
	FieldStepMothers:       {"stepmother", "step_mother", "stepmothers"},
	FieldStepMotherIDs:     {"stepmother_ids"},
	FieldAdoptiveFathers:   {"adoptive_father"},
	FieldAdoptiveFatherIDs: {},
	FieldAdoptiveMothers:   {"adoptive_mother"},
	FieldAdoptiveMotherIDs: {},
	FieldSpouses:           {"spouse", "partners"},
	FieldSpouseIDs:         {"spouse_id"},
	FieldChildren:          {"child"},
	FieldChildrenIDs:       {"child_ids"},
}

// FieldNames returns the canonical name and its aliases, canonical first.
func FieldNames(canonical string) []string {
	return append([]string{canonical}, aliases[canonical]...)
}

// lookup finds a field value by canonical name or any alias.
func lookup(fm map[string]interface{}, canonical string) (interface{}, bool) {
	for _, key := range FieldNames(canonical) {
		if v, ok := fm[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringField(fm map[string]interface{}, canonical string) string {
	v, ok := lookup(fm, canonical)
	if !ok {
		return ""
	}
	return parser.StringValue(v)
}

func listField(fm map[string]interface{}, canonical string) []string {
	v, ok := lookup(fm, canonical)
	if !ok {
		return nil
	}
	return parser.StringList(v)
}

// personMarkers lists the canonical fields whose presence qualifies an
// untyped file as a person record.
var personMarkers = []string{
	FieldID, FieldSex, FieldBorn, FieldDied, FieldResearch,
	FieldFather, FieldFatherID, FieldMother, FieldMotherID,
	FieldParents, FieldParentIDs,
	FieldStepFathers, FieldStepFatherIDs, FieldStepMothers, FieldStepMotherIDs,
	FieldAdoptiveFathers, FieldAdoptiveFatherIDs, FieldAdoptiveMothers, FieldAdoptiveMotherIDs,
	FieldSpouses, FieldSpouseIDs, FieldChildren, FieldChildrenIDs,
}

// IsPerson reports whether frontmatter describes a person record: either an
// explicit `type: person`, or no type at all but at least one person field.
func IsPerson(fm map[string]interface{}) bool {
	if fm == nil {
		return false
	}
	if t := stringField(fm, FieldType); t != "" {
		return strings.EqualFold(t, RecordTypePerson)
	}
	for _, f := range personMarkers {
		if _, ok := lookup(fm, f); ok {
			return true
		}
	}
	return false
}

// refFromID builds a canonical-id reference. Wikilink-shaped values in an
// id field are tolerated and degrade to a name reference.
func refFromID(raw string) models.Ref {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Ref{}
	}
	if target, ok := parser.ParseWikilink(raw); ok {
		return models.Ref{Name: target, Raw: raw}
	}
	return models.Ref{ID: raw, Raw: raw}
}

// refFromDisplay builds a name reference from a display field value.
// Plain text without brackets is still a name: display fields never carry
// canonical ids.
func refFromDisplay(raw string) models.Ref {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Ref{}
	}
	if target, ok := parser.ParseWikilink(raw); ok {
		return models.Ref{Name: target, Raw: raw}
	}
	return models.Ref{Name: raw, Raw: raw}
}

// slotRef resolves a single-valued slot from its id/display field pair.
func slotRef(fm map[string]interface{}, idField, displayField string) models.Ref {
	idRef := refFromID(stringField(fm, idField))
	display := refFromDisplay(stringField(fm, displayField))
	if idRef.ID != "" {
		if idRef.Name == "" {
			idRef.Name = display.Name
		}
		return idRef
	}
	if !idRef.IsZero() {
		return idRef
	}
	return display
}

// slotRefs resolves a list-valued slot. A non-empty id field is
// authoritative for the whole slot; the display list is only consulted
// when no id entries exist.
func slotRefs(fm map[string]interface{}, idField, displayField string) []models.Ref {
	ids := listField(fm, idField)
	if len(ids) > 0 {
		return dedupeRefs(mapRefs(ids, refFromID))
	}
	return dedupeRefs(mapRefs(listField(fm, displayField), refFromDisplay))
}

func mapRefs(values []string, build func(string) models.Ref) []models.Ref {
	var out []models.Ref
	for _, v := range values {
		if r := build(v); !r.IsZero() {
			out = append(out, r)
		}
	}
	return out
}

// dedupeRefs removes duplicate references, comparing by canonical id when
// present and by display name otherwise. The same person referenced by two
// wikilink spellings still collapses once both resolve to one id, which
// happens later at graph build.
func dedupeRefs(refs []models.Ref) []models.Ref {
	seen := make(map[string]struct{}, len(refs))
	var out []models.Ref
	for _, r := range refs {
		key := "id:" + r.ID
		if r.ID == "" {
			key = "name:" + strings.ToLower(r.Name)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Basename returns the record's name stem: the filename without directory
// or .md extension. Wikilinks resolve against this as well as the display
// name.
func Basename(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".md")
}

// Decode normalises a parsed record into a Person. The display name falls
// back to the file basename when the header carries none. Decode never
// fails on odd field shapes; unusable values are simply absent from the
// result.
func Decode(path string, res *parser.Result) *models.Person {
	fm := res.Frontmatter
	p := &models.Person{Path: path}
	if fm == nil {
		p.Name = Basename(path)
		return p
	}

	p.ID = stringField(fm, FieldID)
	p.Name = stringField(fm, FieldName)
	if p.Name == "" {
		p.Name = Basename(path)
	}
	p.Sex = models.ParseSex(stringField(fm, FieldSex))
	p.Born = models.ParseDate(stringField(fm, FieldBorn))
	p.Died = models.ParseDate(stringField(fm, FieldDied))
	p.Research = strings.ToLower(stringField(fm, FieldResearch))
	p.Tags = listField(fm, FieldTags)

	p.Father = slotRef(fm, FieldFatherID, FieldFather)
	p.Mother = slotRef(fm, FieldMotherID, FieldMother)
	p.Parents = slotRefs(fm, FieldParentIDs, FieldParents)
	p.StepFathers = slotRefs(fm, FieldStepFatherIDs, FieldStepFathers)
	p.StepMothers = slotRefs(fm, FieldStepMotherIDs, FieldStepMothers)
	p.AdoptiveFathers = slotRefs(fm, FieldAdoptiveFatherIDs, FieldAdoptiveFathers)
	p.AdoptiveMothers = slotRefs(fm, FieldAdoptiveMotherIDs, FieldAdoptiveMothers)
	p.Spouses = slotRefs(fm, FieldSpouseIDs, FieldSpouses)
	p.Children = slotRefs(fm, FieldChildrenIDs, FieldChildren)

	return p
}
