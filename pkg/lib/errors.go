package lib

import (
	"errors"

	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/runnable"
)

// mapError keeps the internal error message and makes it match the public sentinel.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return &mappedError{original: err, sentinel: ErrNotFound}
	case errors.Is(err, model.ErrAlreadyExists):
		return &mappedError{original: err, sentinel: ErrAlreadyExists}
	case errors.Is(err, model.ErrNotValid):
		return &mappedError{original: err, sentinel: ErrNotValid}
	case errors.Is(err, runnable.ErrTerminated):
		return &mappedError{original: err, sentinel: ErrTerminated}
	default:
		return err
	}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool { return target == e.sentinel }

func (e *mappedError) Unwrap() error { return e.original }
