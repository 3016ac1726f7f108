package security

import "errors"

var (
	ErrACL             = errors.New("acl error")
	ErrUnknownRole     = errors.New("unknown role")
	ErrUnknownResource = errors.New("unknown resource")
	ErrDuplicate       = errors.New("already registered")
)
