// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// session service and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when inserting a user whose email is
// already taken (MySQL duplicate key 1062).
var ErrEmailExists = errors.New("email already exists")

// ErrAlreadyRevoked is returned by the conditional revoke used during
// rotation when the row was revoked by someone else first.
var ErrAlreadyRevoked = errors.New("refresh token already revoked")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as setting replaced_by on a token that already
// has a successor.
var ErrConflict = errors.New("conflict")
