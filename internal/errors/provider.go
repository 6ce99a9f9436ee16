package errors

import "strings"

// Identity provider failures arrive as opaque messages over HTTP. A small set
// of them needs to be recognized so callers can branch on the cause, so the
// matching is done on well-known message fragments.
const (
	// fragmentRefreshTokenNotFound appears when a stored refresh token has been
	// revoked or already rotated. The session is unrecoverable and should be
	// treated as signed out, not surfaced as a failure.
	fragmentRefreshTokenNotFound = "refresh token not found"

	// fragmentSamePassword appears when a password update submits the password
	// already in effect.
	fragmentSamePassword = "same password as before"
)

// IsStaleRefreshToken reports whether err indicates the refresh token backing
// a session no longer exists at the identity provider.
func IsStaleRefreshToken(err error) bool {
	return containsFragment(err, fragmentRefreshTokenNotFound)
}

// IsSamePassword reports whether err indicates a password update reused the
// current password.
func IsSamePassword(err error) bool {
	return containsFragment(err, fragmentSamePassword)
}

// MapProviderError maps a raw identity provider error to an AppError.
// Recognized failures get specific codes; everything else is wrapped as an
// Internal error so raw provider messages never leak to callers unclassified.
func MapProviderError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case IsStaleRefreshToken(err):
		return &AppError{
			Code:    ErrCodeUnauthorized,
			Message: "Your session has expired. Please sign in again.",
			Cause:   err,
		}
	case IsSamePassword(err):
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "New password should be different from your current password.",
			Field:   "password",
			Cause:   err,
		}
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "The identity provider returned an error. Please try again.",
			Cause:   err,
		}
	}
}

func containsFragment(err error, fragment string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), fragment)
}
