package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/testutil"
)

func TestSessionStore_SaveGetDelete(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() { _ = client.Close() }()

	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	sess := domainauth.Session{
		ID:           "sess-1",
		UserID:       "user-1",
		Email:        "user@example.com",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.RefreshToken, got.RefreshToken)

	require.NoError(t, store.Delete(ctx, "sess-1"))

	_, err = store.Get(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_SurvivesAccessTokenExpiry(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() { _ = client.Close() }()

	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	// The access token has expired but the refresh token is still usable, so
	// the reference must remain retrievable for a refresh attempt.
	sess := domainauth.Session{
		ID:           "sess-expired",
		UserID:       "user-1",
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sess-expired")
	require.NoError(t, err)
	assert.True(t, got.Expired())
	assert.Equal(t, "rt", got.RefreshToken)
}

func TestSessionStore_EmptyID(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() { _ = client.Close() }()

	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	require.Error(t, store.Save(ctx, domainauth.Session{}))

	_, err := store.Get(ctx, "")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, ""))
}
