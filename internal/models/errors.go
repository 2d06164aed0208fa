package models

import "errors"

// Error taxonomy for account flows. The service layer converts these into
// user-facing outcomes; the HTTP layer maps them to status codes.
var (
	ErrValidation         = errors.New("invalid input")
	ErrPasswordMismatch   = errors.New("password mismatch")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrUserNotFound       = errors.New("user not found")
	ErrPersistence        = errors.New("persistence failure")
)
