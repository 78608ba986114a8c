package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrPrecondition indicates the record is not in a state that allows the action.
	ErrPrecondition = errors.New("precondition failed")
	// ErrForbidden indicates the caller may not perform the action on the record.
	ErrForbidden = errors.New("forbidden")
	// ErrIdentityMissing occurs when a request carries no caller identity.
	ErrIdentityMissing = errors.New("caller identity missing")
)
