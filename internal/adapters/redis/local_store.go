package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// wipeScanCount is the SCAN batch size used when wiping a namespace.
const wipeScanCount = 200

// LocalStore is a namespaced key/value store backing per-user UI state.
// Keys are scoped under a fixed prefix so a wipe only touches auth-related
// entries and never other tenants of the same Redis.
type LocalStore struct {
	client redis.UniversalClient
	prefix string
}

// NewLocalStore creates a new namespaced local store.
func NewLocalStore(client redis.UniversalClient) *LocalStore {
	return &LocalStore{client: client, prefix: "local:"}
}

// NewLocalStoreWithPrefix creates a local store with a custom key prefix.
func NewLocalStoreWithPrefix(client redis.UniversalClient, prefix string) *LocalStore {
	return &LocalStore{client: client, prefix: prefix}
}

// Set stores a value under the namespace. A zero ttl keeps the entry until wiped.
func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

// Get retrieves a value by key. Returns nil without error when the key does not exist.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	result, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return []byte(result), nil
}

// WipeAll removes every key in the namespace.
func (s *LocalStore) WipeAll(ctx context.Context) error {
	return wipePrefix(ctx, s.client, s.prefix)
}

// ResponseCache caches rendered dashboard responses. Entries expire on their
// own; WipeAll exists so sign-out can clear them eagerly.
type ResponseCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewResponseCache creates a response cache with the given entry TTL.
func NewResponseCache(client redis.UniversalClient, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, prefix: "respcache:", ttl: ttl}
}

// Set stores a cached response body.
func (c *ResponseCache) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

// Get retrieves a cached response body, or nil when absent.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	result, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return []byte(result), nil
}

// WipeAll removes every cached response.
func (c *ResponseCache) WipeAll(ctx context.Context) error {
	return wipePrefix(ctx, c.client, c.prefix)
}

// wipePrefix deletes all keys under prefix using SCAN so large namespaces do
// not block Redis the way KEYS would.
func wipePrefix(ctx context.Context, client redis.UniversalClient, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", wipeScanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if delErr := client.Del(ctx, keys...).Err(); delErr != nil {
				return fmt.Errorf("redis del: %w", delErr)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
