package devauth

// Package devauth provides a simple, config-driven IdentityProvider for local
// development. It accepts any password for the configured identity and keeps
// all state in memory.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// Config controls the dev auth provider behavior.
type Config struct {
	UserID          string
	Email           string
	SessionDuration time.Duration // default 8h when zero
	EventBuffer     int
}

// Provider implements ports.IdentityProvider for local development.
type Provider struct {
	userID          string
	email           string
	sessionDuration time.Duration
	hub             *domainauth.Broadcaster

	mu      sync.Mutex
	current *domainauth.Session
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	buffer := cfg.EventBuffer
	if buffer < 1 {
		buffer = 16
	}
	return &Provider{
		userID:          cfg.UserID,
		email:           cfg.Email,
		sessionDuration: dur,
		hub:             domainauth.NewBroadcaster(buffer),
	}, nil
}

// SubscribeEvents registers a listener for auth lifecycle events.
func (p *Provider) SubscribeEvents(_ context.Context) (<-chan domainauth.Event, func(), error) {
	ch, unsub := p.hub.Subscribe()
	return ch, unsub, nil
}

// Close tears down all event subscriptions.
func (p *Provider) Close() {
	p.hub.StopAll()
}

// SignInWithPassword accepts any non-empty password for the configured email.
func (p *Provider) SignInWithPassword(_ context.Context, in ports.SignInInput) (*domainauth.Session, error) {
	if in.Email != p.email {
		return nil, errors.New("invalid login credentials")
	}
	if in.Password == "" {
		return nil, errors.New("invalid login credentials")
	}

	sess, err := p.newSession()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()

	p.hub.Publish(domainauth.Event{Kind: domainauth.EventSignedIn, Session: sess})
	return sess, nil
}

// SignUp pretends to register the identity and returns it.
func (p *Provider) SignUp(_ context.Context, in ports.SignUpInput) (*domainauth.Identity, error) {
	return &domainauth.Identity{UserID: p.userID, Email: in.Email}, nil
}

// CurrentSession returns the session when it is still the active one.
func (p *Provider) CurrentSession(_ context.Context, ref *domainauth.Session) (*domainauth.Session, error) {
	if ref == nil {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.ID != ref.ID {
		return nil, nil
	}
	if p.current.Expired() {
		return nil, nil
	}
	return p.current, nil
}

// CurrentUser revalidates ref and returns the configured identity.
func (p *Provider) CurrentUser(ctx context.Context, ref *domainauth.Session) (*domainauth.Identity, error) {
	sess, err := p.CurrentSession(ctx, ref)
	if err != nil || sess == nil {
		return nil, err
	}
	return &domainauth.Identity{
		UserID:    p.userID,
		Email:     p.email,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// SignOut forgets the active session.
func (p *Provider) SignOut(_ context.Context, _ *domainauth.Session) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.hub.Publish(domainauth.Event{Kind: domainauth.EventSignedOut})
	return nil
}

// UpdateCredential accepts any password change on an active session.
func (p *Provider) UpdateCredential(ctx context.Context, ref *domainauth.Session, _ string) error {
	sess, err := p.CurrentSession(ctx, ref)
	if err != nil {
		return err
	}
	if sess == nil {
		return errors.New("no active session")
	}
	p.hub.Publish(domainauth.Event{Kind: domainauth.EventUserUpdated, Session: sess})
	return nil
}

// SendRecovery is a no-op for the dev provider.
func (p *Provider) SendRecovery(_ context.Context, _ string) error {
	return nil
}

// VerifyRecovery accepts any token and opens a recovery session.
func (p *Provider) VerifyRecovery(_ context.Context, token string) (*domainauth.Session, error) {
	if token == "" {
		return nil, errors.New("recovery token is required")
	}

	sess, err := p.newSession()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()

	p.hub.Publish(domainauth.Event{Kind: domainauth.EventPasswordRecovery, Session: sess})
	return sess, nil
}

func (p *Provider) newSession() (*domainauth.Session, error) {
	id, err := randomString(24)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	at, err := randomString(24)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &domainauth.Session{
		ID:           id,
		UserID:       p.userID,
		Email:        p.email,
		AccessToken:  at,
		RefreshToken: "dev-refresh",
		ExpiresAt:    time.Now().Add(p.sessionDuration),
	}, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}

var _ ports.IdentityProvider = (*Provider)(nil)
