package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitetrack/sitetrack-api/internal/data"
	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Profiles ports.ProfileStore

	// MaxAttempts bounds how many profile reads happen before a missing row
	// fails the lookup. Defaults to 3.
	MaxAttempts int

	// RetryDelay is the pause between reads. Defaults to 1s.
	RetryDelay time.Duration

	// Sleep is injectable for tests; defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
}

// RoleResolver turns a user ID into its authorization role by reading the
// profiles table. Profile rows are written by a separate registration path,
// so right after sign-up the row may not exist yet; a missing row is re-read
// a bounded number of times before the lookup fails as not found. The
// resolver never retries forever and never retries on query failures.
type RoleResolver struct {
	profiles    ports.ProfileStore
	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// NewRoleResolver constructs a new RoleResolver.
func NewRoleResolver(opts RoleResolverOptions) *RoleResolver {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleResolver{
		profiles:    opts.Profiles,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		sleep:       sleep,
		logger:      logger,
	}
}

// Resolve returns the role binding for userID.
//
// A row that exists but carries no role resolves to RoleUnresolved without
// error: absence of access is an answer, not a failure. A missing row is
// retried up to MaxAttempts times and then fails with a NotFound-classified
// error; a query error is returned immediately. Callers can tell the three
// outcomes apart: "this user has no role", "this user has no profile at
// all", and "the database is broken".
func (r *RoleResolver) Resolve(ctx context.Context, userID string) (domainauth.RoleBinding, error) {
	if userID == "" {
		return domainauth.RoleBinding{}, errors.New("user ID is required")
	}

	for attempt := 1; ; attempt++ {
		profile, err := r.profiles.GetByUserID(ctx, userID)
		if err == nil {
			return domainauth.RoleBinding{UserID: userID, Role: profile.ResolvedRole()}, nil
		}
		if !errors.Is(err, data.ErrProfileNotFound) {
			return domainauth.RoleBinding{}, fmt.Errorf("resolve role: %w", err)
		}
		if attempt >= r.maxAttempts {
			r.logger.Warn("profile row still missing after retries",
				"user_id", userID, "attempts", attempt)
			return domainauth.RoleBinding{}, apperrors.Wrapf(err, apperrors.ErrCodeNotFound,
				"no profile found for user %s", userID)
		}
		if sleepErr := r.sleep(ctx, r.retryDelay); sleepErr != nil {
			return domainauth.RoleBinding{}, sleepErr
		}
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
