// Package repository provides data access to the MySQL schema.  Each
// repository is bound to a *sql.DB and exposes plain methods for
// autonomous reads plus ...Tx variants that run inside a caller-owned
// transaction, so row locks taken with SELECT ... FOR UPDATE stay under
// the caller's control.  Sentinel errors defined here let handlers map
// failures to HTTP responses without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.  Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as attaching a payment to a booking that
// already has one.  Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")
