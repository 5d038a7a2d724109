package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("todo not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError reports caller input that cannot be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports an operation on an id that is not stored.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("todo %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StoreUnavailableError reports that the persisted collection could not be
// read, decoded or written.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	if e.Err == nil {
		return "store " + e.Op + ": unavailable"
	}
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable wraps err as a StoreUnavailableError for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var sue *StoreUnavailableError
	if errors.As(err, &sue) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}
