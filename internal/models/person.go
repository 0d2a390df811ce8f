// Package models defines the domain types for Othala.
package models

import (
	"strings"
	"time"
)

// Ref is a reference to another person record, in one of the two forms the
// vault allows: a canonical id or a display name taken from a wikilink.
// When both are present for the same slot the id wins; Name is then only
// kept for rendering. Raw preserves the original field text for reporting.
type Ref struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Raw  string `json:"raw,omitempty"`
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

// Person is the normalised in-memory form of one person record. It is a
// read-only projection of the file; the file remains the source of truth.
type Person struct {
	Path     string `json:"path"`
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Sex      Sex    `json:"sex,omitempty"`
	Born     Date   `json:"born,omitzero"`
	Died     Date   `json:"died,omitzero"`
	Research string `json:"research,omitempty"`

	// Biological parents are single exclusive slots.
	Father Ref `json:"father,omitzero"`
	Mother Ref `json:"mother,omitzero"`

	// Parents holds gender-neutral parent references (unordered).
	Parents []Ref `json:"parents,omitempty"`

	StepFathers     []Ref `json:"step_fathers,omitempty"`
	StepMothers     []Ref `json:"step_mothers,omitempty"`
	AdoptiveFathers []Ref `json:"adoptive_fathers,omitempty"`
	AdoptiveMothers []Ref `json:"adoptive_mothers,omitempty"`

	// Spouses is ordered (multiple marriages); Children is a set.
	Spouses  []Ref `json:"spouses,omitempty"`
	Children []Ref `json:"children,omitempty"`

	Tags      []string  `json:"tags,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ParentRefs returns every declared parent reference with its kind, in a
// stable order: father, mother, neutral parents, step, adoptive.
func (p *Person) ParentRefs() []ParentRef {
	var out []ParentRef
	if !p.Father.IsZero() {
		out = append(out, ParentRef{Kind: ParentBiological, Role: RoleFather, Ref: p.Father})
	}
	if !p.Mother.IsZero() {
		out = append(out, ParentRef{Kind: ParentBiological, Role: RoleMother, Ref: p.Mother})
	}
	for _, r := range p.Parents {
		out = append(out, ParentRef{Kind: ParentNeutral, Ref: r})
	}
	for _, r := range p.StepFathers {
		out = append(out, ParentRef{Kind: ParentStep, Role: RoleFather, Ref: r})
	}
	for _, r := range p.StepMothers {
		out = append(out, ParentRef{Kind: ParentStep, Role: RoleMother, Ref: r})
	}
	for _, r := range p.AdoptiveFathers {
		out = append(out, ParentRef{Kind: ParentAdoptive, Role: RoleFather, Ref: r})
	}
	for _, r := range p.AdoptiveMothers {
		out = append(out, ParentRef{Kind: ParentAdoptive, Role: RoleMother, Ref: r})
	}
	return out
}

// ParentRef pairs a parent reference with its kind and role.
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	Role Role       `json:"role,omitempty"`
	Ref  Ref        `json:"ref"`
}

// ParentKind distinguishes the non-exclusive parent relationship kinds.
type ParentKind string

const (
	ParentBiological ParentKind = "biological"
	ParentNeutral    ParentKind = "neutral"
	ParentStep       ParentKind = "step"
	ParentAdoptive   ParentKind = "adoptive"
)

// Role names the slot a parent occupies. Neutral parents carry no role.
type Role string

const (
	RoleFather Role = "father"
	RoleMother Role = "mother"
)

// Sex is the normalised sex/gender marker used for role checks and for
// choosing the reciprocal parent slot of a child edge.
type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = ""
)

// ParseSex normalises free-text sex/gender values. Anything not recognised
// as male or female maps to SexUnknown; the raw text stays in the record.
func ParseSex(s string) Sex {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return SexMale
	case "f", "female":
		return SexFemale
	default:
		return SexUnknown
	}
}

// Research levels recognised by list filters and reports. The marker is free
// text in the file; these are the conventional values.
const (
	ResearchVerified    = "verified"
	ResearchProbable    = "probable"
	ResearchSpeculative = "speculative"
	ResearchUnverified  = "unverified"
)

// RecordMeta is a lightweight representation returned by storage listings.
type RecordMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
