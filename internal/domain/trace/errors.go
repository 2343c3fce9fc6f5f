package trace

import "errors"

var (
	// ErrRecordNotFound is returned when a query target does not resolve
	ErrRecordNotFound = errors.New("trace record not found")

	// ErrInvalidInput is returned when a query argument fails validation
	ErrInvalidInput = errors.New("invalid input")
)
