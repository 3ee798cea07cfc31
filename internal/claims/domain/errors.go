package claims

import "errors"

var (
	// ErrClaimNotFound is returned when a claim is not found.
	ErrClaimNotFound = errors.New("claims: not found")
	// ErrNilClaim is returned when saving a nil claim.
	ErrNilClaim = errors.New("claims: nil claim")
	// ErrInvalidCategory is returned for an unknown expense category.
	ErrInvalidCategory = errors.New("claims: invalid category")
	// ErrInvalidTransition is returned for a forbidden status change.
	ErrInvalidTransition = errors.New("claims: invalid status transition")
	// ErrVersionConflict is returned when an optimistic update loses.
	ErrVersionConflict = errors.New("claims: version conflict")
)
