package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	"github.com/sitetrack/sitetrack-api/internal/data"
	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/domain/model"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*FakeProvider)(nil)
	_ ports.ProfileStore     = (*MemoryProfileStore)(nil)
	_ ports.LocalStore       = (*MemoryLocalStore)(nil)
	_ ports.ResponseCache    = (*MemoryResponseCache)(nil)
	_ ports.SessionRefStore  = (*MemorySessionRefStore)(nil)
	_ ports.Navigator        = (*RecordingNavigator)(nil)
	_ ports.AuditSink        = (*RecordingAuditSink)(nil)
)

// FakeProvider is a scriptable identity provider. Every method delegates to
// its corresponding func field when set; otherwise a benign default runs.
// Emit pushes events to subscribers exactly like a real provider would.
type FakeProvider struct {
	SignInFunc           func(ctx context.Context, in ports.SignInInput) (*domainauth.Session, error)
	SignUpFunc           func(ctx context.Context, in ports.SignUpInput) (*domainauth.Identity, error)
	SignOutFunc          func(ctx context.Context, ref *domainauth.Session) error
	CurrentSessionFunc   func(ctx context.Context, ref *domainauth.Session) (*domainauth.Session, error)
	CurrentUserFunc      func(ctx context.Context, ref *domainauth.Session) (*domainauth.Identity, error)
	UpdateCredentialFunc func(ctx context.Context, ref *domainauth.Session, newPassword string) error
	SendRecoveryFunc     func(ctx context.Context, email string) error
	VerifyRecoveryFunc   func(ctx context.Context, token string) (*domainauth.Session, error)

	events *domainauth.Broadcaster
}

// NewFakeProvider creates a FakeProvider with an event buffer large enough
// for typical test scripts.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{events: domainauth.NewBroadcaster(32)}
}

// Emit publishes ev to all current subscribers.
func (p *FakeProvider) Emit(ev domainauth.Event) { p.events.Publish(ev) }

// Close tears down the event stream, closing all subscriber channels.
func (p *FakeProvider) Close() { p.events.StopAll() }

func (p *FakeProvider) SubscribeEvents(_ context.Context) (<-chan domainauth.Event, func(), error) {
	ch, unsub := p.events.Subscribe()
	return ch, unsub, nil
}

func (p *FakeProvider) SignInWithPassword(
	ctx context.Context,
	in ports.SignInInput,
) (*domainauth.Session, error) {
	if p.SignInFunc != nil {
		return p.SignInFunc(ctx, in)
	}
	return nil, errors.New("sign-in not scripted")
}

func (p *FakeProvider) SignUp(ctx context.Context, in ports.SignUpInput) (*domainauth.Identity, error) {
	if p.SignUpFunc != nil {
		return p.SignUpFunc(ctx, in)
	}
	return nil, errors.New("sign-up not scripted")
}

func (p *FakeProvider) SignOut(ctx context.Context, ref *domainauth.Session) error {
	if p.SignOutFunc != nil {
		return p.SignOutFunc(ctx, ref)
	}
	return nil
}

func (p *FakeProvider) CurrentSession(
	ctx context.Context,
	ref *domainauth.Session,
) (*domainauth.Session, error) {
	if p.CurrentSessionFunc != nil {
		return p.CurrentSessionFunc(ctx, ref)
	}
	return ref, nil
}

func (p *FakeProvider) CurrentUser(
	ctx context.Context,
	ref *domainauth.Session,
) (*domainauth.Identity, error) {
	if p.CurrentUserFunc != nil {
		return p.CurrentUserFunc(ctx, ref)
	}
	if ref == nil {
		return nil, nil
	}
	return &domainauth.Identity{UserID: ref.UserID, Email: ref.Email, ExpiresAt: ref.ExpiresAt}, nil
}

func (p *FakeProvider) UpdateCredential(
	ctx context.Context,
	ref *domainauth.Session,
	newPassword string,
) error {
	if p.UpdateCredentialFunc != nil {
		return p.UpdateCredentialFunc(ctx, ref, newPassword)
	}
	return nil
}

func (p *FakeProvider) SendRecovery(ctx context.Context, email string) error {
	if p.SendRecoveryFunc != nil {
		return p.SendRecoveryFunc(ctx, email)
	}
	return nil
}

func (p *FakeProvider) VerifyRecovery(ctx context.Context, token string) (*domainauth.Session, error) {
	if p.VerifyRecoveryFunc != nil {
		return p.VerifyRecoveryFunc(ctx, token)
	}
	return nil, errors.New("verify recovery not scripted")
}

// MemoryProfileStore is an in-memory ProfileStore with the same not-found
// and compare-and-set semantics as the Postgres-backed repository.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile

	// GetErr, when set, is returned by every GetByUserID call.
	GetErr error

	// SetErr, when set, is returned by every SetResetInProgress call.
	SetErr error

	// GetCalls counts GetByUserID invocations, for retry assertions.
	GetCalls int
}

// NewMemoryProfileStore creates an empty MemoryProfileStore.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]*model.Profile)}
}

// Seed installs a profile row directly, bypassing Upsert validation.
func (s *MemoryProfileStore) Seed(p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
}

func (s *MemoryProfileStore) GetByUserID(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, data.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryProfileStore) Upsert(
	_ context.Context,
	req *model.UpsertProfileRequest,
) (*model.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[req.UserID]
	if !ok {
		p = &model.Profile{UserID: req.UserID}
		s.profiles[req.UserID] = p
	}
	if req.Role != nil {
		role := *req.Role
		p.Role = &role
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryProfileStore) SetResetInProgress(
	_ context.Context,
	userID string,
	value, expectCurrent bool,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return false, s.SetErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return false, nil
	}
	if p.PasswordResetInProgress != expectCurrent {
		return false, nil
	}
	p.PasswordResetInProgress = value
	return true, nil
}

// ResetInProgress reports the current latch value for userID.
func (s *MemoryProfileStore) ResetInProgress(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	return ok && p.PasswordResetInProgress
}

// MemoryLocalStore is an in-memory LocalStore that counts wipes.
type MemoryLocalStore struct {
	mu        sync.Mutex
	values    map[string][]byte
	WipeCount int

	// WipeErr, when set, is returned by WipeAll after the count increments.
	WipeErr error
}

// NewMemoryLocalStore creates an empty MemoryLocalStore.
func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{values: make(map[string][]byte)}
}

func (s *MemoryLocalStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryLocalStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryLocalStore) WipeAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WipeCount++
	if s.WipeErr != nil {
		return s.WipeErr
	}
	s.values = make(map[string][]byte)
	return nil
}

// Len reports how many keys remain.
func (s *MemoryLocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// MemoryResponseCache is an in-memory ResponseCache that counts wipes.
type MemoryResponseCache struct {
	mu        sync.Mutex
	WipeCount int
	WipeErr   error
}

func (c *MemoryResponseCache) WipeAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WipeCount++
	return c.WipeErr
}

// MemorySessionRefStore is an in-memory SessionRefStore.
type MemorySessionRefStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session

	// SaveErr and DeleteErr, when set, fail the corresponding call.
	SaveErr   error
	DeleteErr error

	Deleted []string
}

// NewMemorySessionRefStore creates an empty MemorySessionRefStore.
func NewMemorySessionRefStore() *MemorySessionRefStore {
	return &MemorySessionRefStore{sessions: make(map[string]domainauth.Session)}
}

// ErrSessionRefNotFound is returned by Get when no session ref exists.
var ErrSessionRefNotFound = errors.New("session ref not found")

func (s *MemorySessionRefStore) Save(_ context.Context, sess domainauth.Session) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemorySessionRefStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domainauth.Session{}, ErrSessionRefNotFound
	}
	return sess, nil
}

func (s *MemorySessionRefStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, id)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.sessions, id)
	return nil
}

// Has reports whether a session ref with id is stored.
func (s *MemorySessionRefStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// RecordingNavigator records every navigation decision in order.
type RecordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *RecordingNavigator) Navigate(_ context.Context, route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

// Routes returns a copy of the recorded routes.
func (n *RecordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// Last returns the most recent route, or "" when nothing was recorded.
func (n *RecordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

// AuditRecord is one recorded audit entry.
type AuditRecord struct {
	Event  string
	Fields map[string]any
}

// RecordingAuditSink records every audit entry in order.
type RecordingAuditSink struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (s *RecordingAuditSink) Record(_ context.Context, event string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, AuditRecord{Event: event, Fields: fields})
}

// Events returns the recorded event names in order.
func (s *RecordingAuditSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Event
	}
	return out
}

// Records returns a copy of all recorded entries.
func (s *RecordingAuditSink) Records() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditRecord(nil), s.records...)
}
