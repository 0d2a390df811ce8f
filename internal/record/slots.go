package record

import "github.com/starford/othala/internal/models"

// slotFields maps each editable relationship type to its id-form and
// display-form frontmatter fields.
var slotFields = map[models.RelType]struct {
	id      string
	display string
}{
	models.RelFather:         {FieldFatherID, FieldFather},
	models.RelMother:         {FieldMotherID, FieldMother},
	models.RelParent:         {FieldParentIDs, FieldParents},
	models.RelStepFather:     {FieldStepFatherIDs, FieldStepFathers},
	models.RelStepMother:     {FieldStepMotherIDs, FieldStepMothers},
	models.RelAdoptiveFather: {FieldAdoptiveFatherIDs, FieldAdoptiveFathers},
	models.RelAdoptiveMother: {FieldAdoptiveMotherIDs, FieldAdoptiveMothers},
	models.RelSpouse:         {FieldSpouseIDs, FieldSpouses},
	models.RelChild:          {FieldChildrenIDs, FieldChildren},
}

// IDField returns the canonical-id frontmatter field for a slot.
func IDField(rt models.RelType) string {
	return slotFields[rt].id
}

// DisplayField returns the display-link frontmatter field for a slot.
func DisplayField(rt models.RelType) string {
	return slotFields[rt].display
}

// SlotRefs returns the current references a person declares in a slot.
func SlotRefs(p *models.Person, rt models.RelType) []models.Ref {
	switch rt {
	case models.RelFather:
		if p.Father.IsZero() {
			return nil
		}
		return []models.Ref{p.Father}
	case models.RelMother:
		if p.Mother.IsZero() {
			return nil
		}
		return []models.Ref{p.Mother}
	case models.RelParent:
		return p.Parents
	case models.RelStepFather:
		return p.StepFathers
	case models.RelStepMother:
		return p.StepMothers
	case models.RelAdoptiveFather:
		return p.AdoptiveFathers
	case models.RelAdoptiveMother:
		return p.AdoptiveMothers
	case models.RelSpouse:
		return p.Spouses
	case models.RelChild:
		return p.Children
	}
	return nil
}

// ParentSlotForSex selects the parent slot a child edge reciprocates into:
// a male source claims the child's father slot, a female source the mother
// slot, and an unknown sex the gender-neutral parents list.
func ParentSlotForSex(sex models.Sex) models.RelType {
	switch sex {
	case models.SexMale:
		return models.RelFather
	case models.SexFemale:
		return models.RelMother
	default:
		return models.RelParent
	}
}
