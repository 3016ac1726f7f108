package gateway

import "errors"

var (
	ErrRowNotFound       = errors.New("row not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidValue      = errors.New("invalid value")
	ErrRowDeleted        = errors.New("row was deleted")
	ErrEmptyUpdate       = errors.New("nothing to write")
)
