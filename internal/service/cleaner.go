package service

import (
	"context"
	"log/slog"

	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// SessionCleanerOptions groups dependencies for SessionCleaner.
type SessionCleanerOptions struct {
	Provider      ports.IdentityProvider
	SessionRefs   ports.SessionRefStore
	LocalStore    ports.LocalStore
	ResponseCache ports.ResponseCache
	Logger        *slog.Logger
}

// SessionCleaner wipes every piece of client-side session residue: the
// provider session itself, the session reference, the local key/value state,
// and the response cache. Cleanup is best-effort by contract; a failed step
// is logged and the remaining steps still run, and CleanAll never returns an
// error.
type SessionCleaner struct {
	provider ports.IdentityProvider
	refs     ports.SessionRefStore
	local    ports.LocalStore
	cache    ports.ResponseCache
	logger   *slog.Logger
}

// NewSessionCleaner constructs a new SessionCleaner.
func NewSessionCleaner(opts SessionCleanerOptions) *SessionCleaner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleaner{
		provider: opts.Provider,
		refs:     opts.SessionRefs,
		local:    opts.LocalStore,
		cache:    opts.ResponseCache,
		logger:   logger,
	}
}

// CleanAll asks the provider to revoke the session identified by refID when
// one is still stored, then removes the session reference and wipes the local
// store and response cache. Always succeeds from the caller's perspective;
// partial failures leave at most stale cache entries behind, never an
// authenticated session.
func (c *SessionCleaner) CleanAll(ctx context.Context, refID string) {
	if c.provider != nil && c.refs != nil && refID != "" {
		if ref, err := c.refs.Get(ctx, refID); err == nil {
			if err := c.provider.SignOut(ctx, &ref); err != nil {
				c.logger.Warn("session cleanup: provider sign-out failed",
					"session_id", refID, "error", err)
			}
		}
	}

	if c.refs != nil && refID != "" {
		if err := c.refs.Delete(ctx, refID); err != nil {
			c.logger.Warn("session cleanup: delete session ref failed",
				"session_id", refID, "error", err)
		}
	}

	if c.local != nil {
		if err := c.local.WipeAll(ctx); err != nil {
			c.logger.Warn("session cleanup: wipe local store failed", "error", err)
		}
	}

	if c.cache != nil {
		if err := c.cache.WipeAll(ctx); err != nil {
			c.logger.Warn("session cleanup: wipe response cache failed", "error", err)
		}
	}
}
