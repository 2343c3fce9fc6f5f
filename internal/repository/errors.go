package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert collides with an existing
	// unique key. For trace records this is not a failure: the idempotent
	// write path counts it and moves on.
	ErrDuplicate = errors.New("duplicate key")

	// ErrUnavailable is returned when the backing store cannot be reached
	ErrUnavailable = errors.New("storage unavailable")
)
