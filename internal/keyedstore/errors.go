package keyedstore

import (
	"errors"

	"pps/pkg/platform/sentinel"
)

// ErrInvalidRequest marks a request the schema cannot serve (bad key, bad
// path, unknown index). It is a caller bug, not a store fact.
var ErrInvalidRequest = errors.New("keyedstore: invalid request")

// Outcome classifications re-exported for callers that only import this
// package.
var (
	// ErrAlreadyExists is returned by Create when a uniqueness guard fails.
	ErrAlreadyExists = sentinel.ErrAlreadyUsed
	// ErrConditionFailed is returned by Update when a guard or predicate fails.
	ErrConditionFailed = sentinel.ErrConflict
	// ErrNotFound is returned by Update on a missing item.
	ErrNotFound = sentinel.ErrNotFound
	// ErrUnavailable wraps transport failures.
	ErrUnavailable = sentinel.ErrUnavailable
	// ErrInvalidState is returned when a path write runs into a missing or
	// non-map parent, such as a nested write under a null attribute.
	ErrInvalidState = sentinel.ErrInvalidState
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConditionFailed):
		return "condition_failed"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "error"
	}
}
