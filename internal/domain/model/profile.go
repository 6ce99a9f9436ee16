//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
)

// Profile is the application's own record of a user's authorization role and
// password-recovery latch, keyed by the provider's user identifier. Rows are
// created asynchronously after sign-up, so a freshly registered user may not
// have one yet when first queried.
type Profile struct {
	UserID string `json:"user_id" db:"user_id"`
	// Role is nullable in storage; a NULL role maps to RoleUnresolved.
	Role                    *string   `json:"role,omitempty"             db:"role"`
	PasswordResetInProgress bool      `json:"password_reset_in_progress" db:"password_reset_in_progress"`
	CreatedAt               time.Time `json:"created_at"                 db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"                 db:"updated_at"`
}

// ResolvedRole maps the stored nullable role onto the closed Role enum.
// NULL and unknown values both come back as RoleUnresolved so a malformed row
// never grants access.
func (p Profile) ResolvedRole() domainauth.Role {
	if p.Role == nil {
		return domainauth.RoleUnresolved
	}
	role := domainauth.Role(strings.ToLower(strings.TrimSpace(*p.Role)))
	if !role.Valid() {
		return domainauth.RoleUnresolved
	}
	return role
}

// UpsertProfileRequest carries inputs for creating or refreshing a profile row.
type UpsertProfileRequest struct {
	UserID string  `json:"user_id"`
	Role   *string `json:"role,omitempty"`
}

// Validate checks the request before it reaches the data layer.
func (r *UpsertProfileRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if r.Role != nil {
		if !domainauth.Role(strings.ToLower(strings.TrimSpace(*r.Role))).Valid() {
			return errors.New("role must be admin, client, or unresolved")
		}
	}
	return nil
}
