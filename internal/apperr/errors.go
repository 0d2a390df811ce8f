package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalid marks a request malformed at the domain level: an unknown
	// relationship slot, too many targets for an exclusive slot, a record
	// referencing itself.
	ErrInvalid = errors.New("invalid request")

	// ErrAmbiguous marks a display-name lookup that matched more than one
	// record. Callers must surface the candidate set, never pick one.
	ErrAmbiguous = errors.New("ambiguous reference")

	// ErrDuplicateID marks two records claiming the same canonical id, a
	// data-integrity condition that is surfaced and never auto-repaired.
	ErrDuplicateID = errors.New("duplicate canonical id")
)
