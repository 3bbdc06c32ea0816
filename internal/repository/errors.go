// Package repository defines the storage interfaces and error types shared
// across the MySQL implementations and the in-memory fakes. These sentinel
// values allow higher layers such as handlers and middleware to distinguish
// between failure scenarios without inspecting driver-specific errors: for
// example, ErrNotFound maps to HTTP 404 while ErrEmailExists maps to 409.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. The MySQL
// repositories translate sql.ErrNoRows into this sentinel so callers never
// depend on database/sql directly.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by user creation when the email column's
// unique constraint is violated. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrTokenNotFound is returned by the token registry when no refresh token
// is currently registered for a user. Registry unavailability is reported
// as a distinct error by the Redis implementation, but callers must treat
// both cases as "no valid refresh token" (fail closed).
var ErrTokenNotFound = errors.New("refresh token not found")
