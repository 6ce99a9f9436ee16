package httpx

import (
	"context"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// roleKey carries the freshly resolved role for the current request.
type roleKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the session from context and a boolean indicating presence.
func GetSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// SetRoleInContext returns a child context carrying the resolved role. The
// role is per-request derived state and is never persisted or trusted across
// requests.
func SetRoleInContext(ctx context.Context, role domainauth.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// GetRoleFromContext returns the resolved role for the request, defaulting to
// RoleUnresolved when the guard did not run.
func GetRoleFromContext(ctx context.Context) domainauth.Role {
	if role, ok := ctx.Value(roleKey{}).(domainauth.Role); ok {
		return role
	}
	return domainauth.RoleUnresolved
}
