package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitetrack/sitetrack-api/internal/testutil"
)

func TestLocalStore_SetGet(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() { _ = client.Close() }()

	store := NewLocalStore(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ui:theme", []byte("dark")))

	got, err := store.Get(ctx, "ui:theme")
	require.NoError(t, err)
	assert.Equal(t, []byte("dark"), got)

	// missing key is nil, not an error
	got, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalStore_WipeAll(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() { _ = client.Close() }()

	store := NewLocalStore(client)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, key, []byte("v")))
	}
	// A key outside the namespace must survive the wipe.
	require.NoError(t, client.Set(ctx, "other:key", "keep", 0).Err())

	require.NoError(t, store.WipeAll(ctx))

	for _, key := range []string{"a", "b", "c"} {
		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got, "key %q should be wiped", key)
	}

	kept, err := client.Get(ctx, "other:key").Result()
	require.NoError(t, err)
	assert.Equal(t, "keep", kept)
}

func TestResponseCache_WipeAll(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewResponseCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "dashboard:user-1", []byte("<html>")))

	got, err := cache.Get(ctx, "dashboard:user-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, cache.WipeAll(ctx))

	got, err = cache.Get(ctx, "dashboard:user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalStore_EmptyKey(t *testing.T) {
	store := NewLocalStore(nil)
	ctx := context.Background()

	require.Error(t, store.Set(ctx, "", []byte("v")))
	_, err := store.Get(ctx, "")
	require.Error(t, err)
}
