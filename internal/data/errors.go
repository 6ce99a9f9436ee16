package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrProfileNotFound is returned when no profile row exists for a user.
	// Callers use it to distinguish "row not written yet" from query failure.
	ErrProfileNotFound = errors.New("profile not found")
)
