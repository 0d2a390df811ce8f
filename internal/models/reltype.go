package models

import "fmt"

// RelType names a relationship slot as edited through the write path.
type RelType string

const (
	RelFather         RelType = "father"
	RelMother         RelType = "mother"
	RelParent         RelType = "parent" // gender-neutral
	RelStepFather     RelType = "step_father"
	RelStepMother     RelType = "step_mother"
	RelAdoptiveFather RelType = "adoptive_father"
	RelAdoptiveMother RelType = "adoptive_mother"
	RelSpouse         RelType = "spouse"
	RelChild          RelType = "child"
)

// RelTypes lists every editable relationship slot in a stable order.
var RelTypes = []RelType{
	RelFather, RelMother, RelParent,
	RelStepFather, RelStepMother,
	RelAdoptiveFather, RelAdoptiveMother,
	RelSpouse, RelChild,
}

// ParseRelType validates a wire-format relationship type.
func ParseRelType(s string) (RelType, error) {
	for _, rt := range RelTypes {
		if s == string(rt) {
			return rt, nil
		}
	}
	return "", fmt.Errorf("models: unknown relationship type %q", s)
}

// Exclusive reports whether the slot holds at most one reference.
// Only the biological father/mother slots are exclusive; every other kind
// is list-valued and therefore cannot conflict, only duplicate.
func (rt RelType) Exclusive() bool {
	return rt == RelFather || rt == RelMother
}

// IsParentKind reports whether the slot points from a child to a parent.
func (rt RelType) IsParentKind() bool {
	switch rt {
	case RelFather, RelMother, RelParent, RelStepFather, RelStepMother, RelAdoptiveFather, RelAdoptiveMother:
		return true
	}
	return false
}

// Slot returns the relationship slot a parent reference belongs to.
func (pr ParentRef) Slot() RelType {
	switch pr.Kind {
	case ParentBiological:
		if pr.Role == RoleMother {
			return RelMother
		}
		return RelFather
	case ParentStep:
		if pr.Role == RoleMother {
			return RelStepMother
		}
		return RelStepFather
	case ParentAdoptive:
		if pr.Role == RoleMother {
			return RelAdoptiveMother
		}
		return RelAdoptiveFather
	default:
		return RelParent
	}
}
