package record

import "strings"

// Skeleton describes a new person record to render. Empty fields are
// omitted from the header; placeholder persons may carry nothing but an
// id.
type Skeleton struct {
	ID       string
	Name     string
	Sex      string
	Born     string
	Died     string
	Research string
	Body     string
}

// Render produces the full file content for a new person record, with
// fields in canonical order.
func Render(s Skeleton) ([]byte, error) {
	changes := []Change{{Field: FieldType, Value: RecordTypePerson}}
	if s.ID != "" {
		changes = append(changes, Change{Field: FieldID, Value: s.ID})
	}
	if s.Name != "" {
		changes = append(changes, Change{Field: FieldName, Value: s.Name})
	}
	if s.Sex != "" {
		changes = append(changes, Change{Field: FieldSex, Value: s.Sex})
	}
	if s.Born != "" {
		changes = append(changes, Change{Field: FieldBorn, Value: s.Born})
	}
	if s.Died != "" {
		changes = append(changes, Change{Field: FieldDied, Value: s.Died})
	}
	if s.Research != "" {
		changes = append(changes, Change{Field: FieldResearch, Value: s.Research})
	}

	body := s.Body
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return Update([]byte(body), changes)
}
