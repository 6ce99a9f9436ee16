package httpx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
)

func TestSessionContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := GetSessionFromContext(ctx)
	assert.False(t, ok)

	sess := &domainauth.Session{ID: "ref-1", UserID: "user-1"}
	ctx = SetSessionInContext(ctx, sess)
	got, ok := GetSessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, sess, got)
}

func TestSetSessionInContext_NilSession(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, SetSessionInContext(ctx, nil))
}

func TestRoleContextDefaultsToUnresolved(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, domainauth.RoleUnresolved, GetRoleFromContext(ctx))

	ctx = SetRoleInContext(ctx, domainauth.RoleAdmin)
	assert.Equal(t, domainauth.RoleAdmin, GetRoleFromContext(ctx))
}
