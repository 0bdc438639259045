package model

import "errors"

var (
	// ErrNotFound is returned when a runnable or a run doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a run is already tracked or its runnable is already underway.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned for invalid definitions, requests and state transitions.
	ErrNotValid = errors.New("not valid")
)
