package redis

// Package redis provides Redis-based adapters for session references and
// per-user local state.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
)

// SessionStore is a Redis-based session reference store for production use.
// The access and refresh tokens live here keyed by an opaque session ID; only
// that ID ever reaches the browser. TTL follows the session ExpiresAt, bounded
// by maxTTL so a stale refresh token cannot live forever.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	maxTTL time.Duration
}

// NewSessionStore creates a new Redis-based session reference store.
func NewSessionStore(client redis.UniversalClient, maxTTL time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: "session:",
		maxTTL: maxTTL,
	}
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string, maxTTL time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
		maxTTL: maxTTL,
	}
}

// Save stores a session reference. Refresh tokens outlive the access token,
// so the entry is kept for maxTTL rather than until the access token expires.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := s.maxTTL
	if ttl <= 0 {
		ttl = time.Until(sess.ExpiresAt)
	}
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	return s.client.Set(ctx, s.prefix+sess.ID, data, ttl).Err()
}

// Get retrieves a session reference by ID. Returns ErrNotFound when the
// reference does not exist or has aged out.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	return sess, nil
}

// Delete removes a session reference.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}

	return s.client.Del(ctx, s.prefix+id).Err()
}

// ErrNotFound is returned when a session reference is not found.
type notFoundError struct{}

func (notFoundError) Error() string { return "session not found" }

var ErrNotFound error = notFoundError{}
