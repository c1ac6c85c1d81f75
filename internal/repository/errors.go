// Package repository implements MySQL data access for users and tasks.
// Sentinel errors defined here let handlers map failure modes onto HTTP
// statuses without inspecting driver error strings.
package repository

import "errors"

// ErrUsernameExists is returned when a registration or admin create
// collides with an existing username (comparison is case-insensitive
// because usernames are stored lowercased).
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when the email is already registered.
var ErrEmailExists = errors.New("email already registered")

// ErrRefreshMismatch is returned by RotateRefresh when the stored
// refresh-token digest does not match the supplied one, the stored token
// has expired, or the user row is gone. Exactly one of two concurrent
// rotations with the same stale token can avoid this error.
var ErrRefreshMismatch = errors.New("refresh token mismatch")
