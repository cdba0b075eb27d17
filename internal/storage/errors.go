package storage

import (
	"errors"

	"pps/internal/keyedstore"
	dErrors "pps/pkg/domain-errors"
)

// Translate maps store failures that carry no domain meaning onto coded
// errors. Guard failures (ErrConditionFailed, ErrAlreadyExists) are left to
// the caller, which knows what the guard protected.
func Translate(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyedstore.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, keyedstore.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	case errors.Is(err, keyedstore.ErrInvalidRequest):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
