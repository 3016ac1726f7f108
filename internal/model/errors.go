package model

import (
	"errors"
	"fmt"
)

var (
	// ErrModel reports a broken model definition or an operation the model cannot perform.
	ErrModel           = errors.New("model error")
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownClass    = errors.New("unknown model class")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("model not found")
	ErrDeleted         = errors.New("model was deleted")
)

// NotFoundError is returned when loading a persisted model by id fails.
type NotFoundError struct {
	Class string
	ID    int64
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s#%d not found", e.Class, e.ID)
}

// Is reports whether target is [ErrNotFound].
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is or wraps a [NotFoundError].
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError describes a field value rejected by validation.
type ValidationError struct {
	Class string
	Field string
	Err   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Class, e.Field, e.Err)
}

// Unwrap returns the underlying validator error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrValidation].
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
