package store

import "errors"

var (
	// ErrPersistence wraps database failures from either repository.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
)
