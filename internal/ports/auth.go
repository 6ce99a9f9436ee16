package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration
// in internal/service.

import (
	"context"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/domain/model"
)

// SignInInput carries credentials for a password sign-in.
type SignInInput struct {
	Email    string
	Password string
}

// SignUpInput carries inputs for registering a new identity.
type SignUpInput struct {
	Email    string
	Password string
}

// IdentityProvider is the external identity service of record. All calls are
// asynchronous network calls that may fail with a provider-defined error
// carrying a machine-checkable message substring (see internal/errors).
type IdentityProvider interface {
	// SubscribeEvents registers a listener for auth lifecycle events. Events
	// are delivered in emission order on the returned channel. The returned
	// unsubscribe func releases the listener; after it returns no further
	// events are delivered and the channel is closed.
	SubscribeEvents(ctx context.Context) (<-chan domainauth.Event, func(), error)

	// CurrentSession returns the provider's view of the session referenced by
	// ref, or nil when the provider no longer recognizes it.
	CurrentSession(ctx context.Context, ref *domainauth.Session) (*domainauth.Session, error)

	// CurrentUser revalidates ref against the provider and returns the
	// authenticated identity, or nil when there is no valid session.
	CurrentUser(ctx context.Context, ref *domainauth.Session) (*domainauth.Identity, error)

	SignInWithPassword(ctx context.Context, in SignInInput) (*domainauth.Session, error)
	SignUp(ctx context.Context, in SignUpInput) (*domainauth.Identity, error)
	SignOut(ctx context.Context, ref *domainauth.Session) error

	// UpdateCredential changes the password for the session's user.
	UpdateCredential(ctx context.Context, ref *domainauth.Session, newPassword string) error

	// SendRecovery asks the provider to email a password recovery link.
	SendRecovery(ctx context.Context, email string) error

	// VerifyRecovery exchanges a recovery token from an emailed link for a
	// session and emits a PASSWORD_RECOVERY event.
	VerifyRecovery(ctx context.Context, token string) (*domainauth.Session, error)
}

// ProfileStore reads and writes the profiles table keyed by provider user id.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
	Upsert(ctx context.Context, req *model.UpsertProfileRequest) (*model.Profile, error)

	// SetResetInProgress flips the recovery latch from expectCurrent to value
	// atomically (update-if-current-value-matches). It returns false when the
	// latch was not in the expected state, which callers treat as "someone
	// else already handled this transition".
	SetResetInProgress(ctx context.Context, userID string, value, expectCurrent bool) (bool, error)
}

// LocalStore is the application's general-purpose persisted key-value state.
// SessionCleaner wipes it wholesale.
type LocalStore interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	WipeAll(ctx context.Context) error
}

// ResponseCache is the local response-cache area, also wiped wholesale on
// cleanup.
type ResponseCache interface {
	WipeAll(ctx context.Context) error
}

// SessionRefStore persists the transient session reference for the lifetime
// of one browser session.
type SessionRefStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// Navigator receives the navigation decisions the reconciler makes. The HTTP
// layer turns them into redirects; tests record them.
type Navigator interface {
	Navigate(ctx context.Context, route string)
}

// AuditSink receives best-effort auth lifecycle notifications. Implementations
// must never block a state-machine transition on delivery.
type AuditSink interface {
	Record(ctx context.Context, event string, fields map[string]any)
}
