package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors.
//
// These represent factual states about stored items, not validation failures:
// - ErrNotFound: item does not exist in store
// - ErrAlreadyUsed: a uniqueness guard found the key already present
// - ErrConflict: an update guard or predicate did not hold
// - ErrInvalidState: the item's shape cannot take the requested write
// - ErrUnavailable: the store transport failed
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
