package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// PasswordUpdateOptions groups dependencies for PasswordUpdateFlow.
type PasswordUpdateOptions struct {
	Provider ports.IdentityProvider
	Profiles ports.ProfileStore
	Cleaner  *SessionCleaner

	// MinLength is the minimum accepted password length. Defaults to 6.
	MinLength int

	Logger *slog.Logger
}

// PasswordUpdateFlow validates and submits password changes. Validation runs
// strictly before any provider call, and only one update may be in flight at
// a time.
type PasswordUpdateFlow struct {
	provider  ports.IdentityProvider
	profiles  ports.ProfileStore
	cleaner   *SessionCleaner
	minLength int
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewPasswordUpdateFlow constructs a new PasswordUpdateFlow.
func NewPasswordUpdateFlow(opts PasswordUpdateOptions) *PasswordUpdateFlow {
	minLength := opts.MinLength
	if minLength < 1 {
		minLength = 6
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordUpdateFlow{
		provider:  opts.Provider,
		profiles:  opts.Profiles,
		cleaner:   opts.Cleaner,
		minLength: minLength,
		logger:    logger,
	}
}

// PasswordUpdateInput groups parameters for a password update.
type PasswordUpdateInput struct {
	Session *domainauth.Session

	// Current is the password in use today. Ignored in recovery mode, where
	// the emailed link already proved control of the account.
	Current  string
	Password string
	Confirm  string

	// Recovery marks an update that completes a password recovery.
	Recovery bool
}

// InFlight reports whether an update is currently running.
func (f *PasswordUpdateFlow) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Update validates in and submits the password change to the provider.
// Validation failures and recognized provider failures come back as AppErrors
// so the HTTP layer can map them to fields and statuses.
func (f *PasswordUpdateFlow) Update(ctx context.Context, in PasswordUpdateInput) error {
	if err := f.validate(in); err != nil {
		return err
	}

	if !f.begin() {
		return apperrors.Conflict("A password update is already in progress.")
	}
	defer f.end()

	// Outside recovery, prove knowledge of the current password before
	// touching the credential. Recovery skips this: the link was the proof.
	if !in.Recovery {
		if _, err := f.provider.SignInWithPassword(ctx, ports.SignInInput{
			Email:    in.Session.Email,
			Password: in.Current,
		}); err != nil {
			return apperrors.ValidationField("current_password", "Current password is incorrect.")
		}
	}

	if err := f.provider.UpdateCredential(ctx, in.Session, in.Password); err != nil {
		mapped := apperrors.MapProviderError(err)
		if apperrors.IsUnauthorized(mapped) {
			// The provider no longer recognizes the session. Leave nothing
			// behind for a retry to trip over.
			if f.cleaner != nil {
				f.cleaner.CleanAll(ctx, in.Session.ID)
			}
		}
		return mapped
	}

	// In recovery mode make sure the latch is set so the USER_UPDATED
	// handler has a record to clear. Normally PASSWORD_RECOVERY already set
	// it; a false answer here just means that happened.
	if in.Recovery && f.profiles != nil {
		if _, err := f.profiles.SetResetInProgress(ctx, in.Session.UserID, true, false); err != nil {
			f.logger.Error("set recovery latch failed", "user_id", in.Session.UserID, "error", err)
		}
	}
	return nil
}

func (f *PasswordUpdateFlow) validate(in PasswordUpdateInput) error {
	if in.Session == nil {
		return apperrors.Unauthorized("Sign in to update your password.")
	}
	if len(in.Password) < f.minLength {
		return apperrors.ValidationField("password",
			"Password must be at least "+strconv.Itoa(f.minLength)+" characters.")
	}
	if in.Password != in.Confirm {
		return apperrors.ValidationField("confirm_password", "Passwords do not match.")
	}
	return nil
}

func (f *PasswordUpdateFlow) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return false
	}
	f.inFlight = true
	return true
}

func (f *PasswordUpdateFlow) end() {
	f.mu.Lock()
	f.inFlight = false
	f.mu.Unlock()
}
