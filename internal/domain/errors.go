// Package domain holds the failure taxonomy shared by the product repository
// and the event log recorder.
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoOp is returned by an update that carries no fields. It is a
	// sentinel result, not a failure class: callers decide how to report it.
	ErrNoOp = errors.New("no fields to update")
)

// Classified reports whether err already belongs to the taxonomy
func Classified(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrNoOp)
}

// Unavailable wraps an unmapped store error as ErrStoreUnavailable
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
