// Package repository implements persistence for the users table on top of
// database/sql.  Sentinel errors defined here let handlers translate
// storage failures into the right HTTP responses without inspecting driver
// error strings themselves.
package repository

import "errors"

// ErrNotFound is returned when a referenced user id or email does not
// exist.  Handlers translate this into an HTTP 404 (or a generic 401 on
// authentication paths, where revealing existence would leak information).
var ErrNotFound = errors.New("user not found")

// ErrEmailTaken is returned when an insert or update collides with the
// unique email index.  Handlers report it as a validation failure with
// HTTP 422.
var ErrEmailTaken = errors.New("email already taken")
