package auth

// Package auth contains domain-level types for authentication, sessions, and
// the session-reconciliation state machine. It is pure and free of
// framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
	// RoleUnresolved marks a profile row that exists but carries no role yet.
	// It is distinct from "no profile row" (ErrProfileNotFound at the data
	// layer): an unresolved role is a real record that simply lacks access.
	RoleUnresolved Role = "unresolved"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClient, RoleUnresolved:
		return true
	default:
		return false
	}
}

// Identity represents the authenticated principal returned by the provider.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID    string // stable provider user identifier (sub)
	Email     string
	ExpiresAt time.Time // absolute expiry from the provider token
}

// Session is the transient reference to a provider token bundle held for the
// lifetime of one browser session. It is never treated as proof of
// authentication on its own; protected-route evaluation revalidates it
// against the provider every time.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session's validity window has passed.
func (s Session) Expired() bool { return time.Now().After(s.ExpiresAt) }

// RoleBinding is the freshly resolved pairing of a user identifier and its
// authorization role. It is derived, never persisted, and recomputed whenever
// the session changes.
type RoleBinding struct {
	UserID string
	Role   Role
}
