package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Store lookups that match no row.
	ErrNotFound = errors.New("not found")

	ErrUserNotFound = errors.New("user does not exist")
	ErrPastDate     = errors.New("date is in the past")
	ErrConflict     = errors.New("another booking exists at this time")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsClientError reports whether err is an expected, caller-correctable condition.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPastDate) ||
		errors.Is(err, ErrConflict)
}
