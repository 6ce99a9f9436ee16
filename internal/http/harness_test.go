package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	mockauth "github.com/sitetrack/sitetrack-api/internal/mocks/auth"
	"github.com/sitetrack/sitetrack-api/internal/service"
)

// harness wires the router to in-memory doubles for handler and guard tests.
type harness struct {
	provider   *mockauth.FakeProvider
	profiles   *mockauth.MemoryProfileStore
	refs       *mockauth.MemorySessionRefStore
	local      *mockauth.MemoryLocalStore
	cache      *mockauth.MemoryResponseCache
	audit      *mockauth.RecordingAuditSink
	guard      *Guard
	reconciler *service.Reconciler
	handler    http.Handler
}

func landingForRole(role domainauth.Role) string {
	switch role {
	case domainauth.RoleAdmin:
		return "/admin"
	case domainauth.RoleClient:
		return "/dashboard"
	default:
		return "/auth/sign-in"
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: mockauth.NewFakeProvider(),
		profiles: mockauth.NewMemoryProfileStore(),
		refs:     mockauth.NewMemorySessionRefStore(),
		local:    mockauth.NewMemoryLocalStore(),
		cache:    &mockauth.MemoryResponseCache{},
		audit:    &mockauth.RecordingAuditSink{},
	}
	t.Cleanup(h.provider.Close)

	cleaner := service.NewSessionCleaner(service.SessionCleanerOptions{
		Provider:      h.provider,
		SessionRefs:   h.refs,
		LocalStore:    h.local,
		ResponseCache: h.cache,
	})
	roles := service.NewRoleResolver(service.RoleResolverOptions{
		Profiles:    h.profiles,
		MaxAttempts: 1,
	})
	h.reconciler = service.NewReconciler(service.ReconcilerOptions{
		Provider:       h.provider,
		Cleaner:        cleaner,
		Roles:          roles,
		Profiles:       h.profiles,
		SessionRefs:    h.refs,
		Audit:          h.audit,
		LandingForRole: landingForRole,
		SignInPath:     "/auth/sign-in",
	})
	gate := service.NewRecoveryGate(service.RecoveryGateOptions{
		Cleaner: cleaner,
		Latch:   func() bool { return h.reconciler.Snapshot().RecoveryMode },
	})
	passwords := service.NewPasswordUpdateFlow(service.PasswordUpdateOptions{
		Provider: h.provider,
		Profiles: h.profiles,
		Cleaner:  cleaner,
	})
	h.guard = NewGuard(GuardOptions{
		Sessions:       h.refs,
		Provider:       h.provider,
		Roles:          roles,
		Cleaner:        cleaner,
		Audit:          h.audit,
		SignInPath:     "/auth/sign-in",
		LandingForRole: landingForRole,
	})

	h.handler = NewRouter(RouterServices{
		Auth: &AuthHandlers{
			Provider:       h.provider,
			Sessions:       h.refs,
			Roles:          roles,
			Profiles:       service.NewProfileProvisioner(service.ProfileProvisionerOptions{Profiles: h.profiles}),
			Cleaner:        cleaner,
			Passwords:      passwords,
			Recovery:       gate,
			Reconciler:     h.reconciler,
			LandingForRole: landingForRole,
			SignInPath:     "/auth/sign-in",
			SessionTTL:     time.Hour,
		},
		Guard: h.guard,
	})
	return h
}

// do executes a request against the router and returns the recorder.
func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// withSession seeds a saved session reference and returns a cookie for it.
func (h *harness) withSession(t *testing.T, sess domainauth.Session) *http.Cookie {
	t.Helper()
	if err := h.refs.Save(context.Background(), sess); err != nil {
		t.Fatalf("save session ref: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: sess.ID}
}
