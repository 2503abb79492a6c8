package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a service wraps exactly one of these,
// so handlers can map failures with errors.Is.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrConflict         = errors.New("conflict")
	ErrRateLimited      = errors.New("rate limited")
)

// StoreError wraps a driver failure as ErrStoreUnavailable, keeping the cause.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, msg)
}
