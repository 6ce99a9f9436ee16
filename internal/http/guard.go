package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
	"github.com/sitetrack/sitetrack-api/internal/ports"
	"github.com/sitetrack/sitetrack-api/internal/service"
)

// sessionCookieName carries the transient session reference id.
const sessionCookieName = "session_id"

// GuardOptions groups dependencies for Guard.
type GuardOptions struct {
	Sessions ports.SessionRefStore
	Provider ports.IdentityProvider
	Roles    *service.RoleResolver
	Cleaner  *service.SessionCleaner
	Audit    ports.AuditSink

	// SignInPath is where unauthenticated requests are sent.
	SignInPath string

	// LandingForRole maps a resolved role to its neutral landing route, used
	// when an authenticated user lacks the required role.
	LandingForRole func(domainauth.Role) string

	Logger *slog.Logger
}

// Guard gates protected routes by role. Every request revalidates the
// transient session reference against the provider; nothing cached locally
// counts as proof of authentication. Resolved role bindings are cached only
// as a lookup shortcut and the cache is dropped whenever the provider
// announces a sign-out.
type Guard struct {
	sessions   ports.SessionRefStore
	provider   ports.IdentityProvider
	roles      *service.RoleResolver
	cleaner    *service.SessionCleaner
	audit      ports.AuditSink
	signInPath string
	landing    func(domainauth.Role) string
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]domainauth.Role

	startMu sync.Mutex
	unsub   func()
	done    chan struct{}
}

// NewGuard constructs a new Guard.
func NewGuard(opts GuardOptions) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	signInPath := opts.SignInPath
	if signInPath == "" {
		signInPath = "/auth/sign-in"
	}
	landing := opts.LandingForRole
	if landing == nil {
		landing = func(domainauth.Role) string { return signInPath }
	}
	return &Guard{
		sessions:   opts.Sessions,
		provider:   opts.Provider,
		roles:      opts.Roles,
		cleaner:    opts.Cleaner,
		audit:      opts.Audit,
		signInPath: signInPath,
		landing:    landing,
		logger:     logger,
		cache:      make(map[string]domainauth.Role),
	}
}

// Start subscribes the guard to provider lifecycle events so externally
// observed sign-outs invalidate cached role bindings.
func (g *Guard) Start(ctx context.Context) error {
	g.startMu.Lock()
	defer g.startMu.Unlock()
	if g.unsub != nil {
		return errors.New("guard already started")
	}

	events, unsub, err := g.provider.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	g.unsub = unsub
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)
		for ev := range events {
			switch ev.Kind {
			case domainauth.EventSignedOut, domainauth.EventUserUpdated:
				g.invalidate()
			default:
			}
		}
	}()
	return nil
}

// Close releases the event subscription. Safe to call more than once.
func (g *Guard) Close() {
	g.startMu.Lock()
	unsub, done := g.unsub, g.done
	g.unsub = nil
	g.startMu.Unlock()

	if unsub != nil {
		unsub()
	}
	if done != nil {
		<-done
	}
}

func (g *Guard) invalidate() {
	g.mu.Lock()
	g.cache = make(map[string]domainauth.Role)
	g.mu.Unlock()
}

// Require returns middleware admitting only sessions whose freshly resolved
// role equals required. Unauthenticated requests redirect to the sign-in
// entry before any protected bytes are written; authenticated requests with
// the wrong role land on their own neutral surface with a notice.
func (g *Guard) Require(required domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := g.authenticate(w, r)
			if sess == nil {
				g.redirectToSignIn(w, r)
				return
			}

			role, err := g.resolveRole(r.Context(), sess.UserID)
			if err != nil {
				// A session without any profile row carries no access at all.
				if apperrors.IsNotFound(err) {
					g.logger.Warn("no profile for session user", "user_id", sess.UserID)
					g.redirectToSignIn(w, r)
					return
				}
				g.logger.Error("role resolution failed", "user_id", sess.UserID, "error", err)
				WriteError(w, ErrorParams{
					Code:    http.StatusInternalServerError,
					ErrCode: "role_resolution_failed",
					Err:     errors.New("unable to determine account access"),
				})
				return
			}

			if role != required {
				g.record(r.Context(), "access_denied", map[string]any{
					"user_id":  sess.UserID,
					"role":     string(role),
					"required": string(required),
					"path":     r.URL.Path,
				})
				dest := g.landing(role)
				q := url.Values{"notice": {"access_denied"}}
				http.Redirect(w, r, dest+"?"+q.Encode(), http.StatusSeeOther)
				return
			}

			ctx := SetSessionInContext(r.Context(), sess)
			ctx = SetRoleInContext(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate revalidates the request's session reference with the provider.
// It returns nil when there is no live session, cleaning up whatever local
// residue pointed at one.
func (g *Guard) authenticate(w http.ResponseWriter, r *http.Request) *domainauth.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	ref, err := g.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		clearSessionCookie(w, r)
		return nil
	}

	current, err := g.provider.CurrentSession(r.Context(), &ref)
	if err != nil {
		g.logger.Warn("session revalidation failed", "session_id", ref.ID, "error", err)
		g.discard(w, r, ref.ID)
		return nil
	}
	if current == nil {
		// The provider no longer recognizes the session.
		g.discard(w, r, ref.ID)
		return nil
	}
	if current.AccessToken != ref.AccessToken {
		if saveErr := g.sessions.Save(r.Context(), *current); saveErr != nil {
			g.logger.Warn("save refreshed session failed", "session_id", current.ID, "error", saveErr)
		}
	}

	identity, err := g.provider.CurrentUser(r.Context(), current)
	if err != nil || identity == nil {
		g.discard(w, r, ref.ID)
		return nil
	}
	return current
}

func (g *Guard) discard(w http.ResponseWriter, r *http.Request, refID string) {
	if g.cleaner != nil {
		g.cleaner.CleanAll(r.Context(), refID)
	}
	clearSessionCookie(w, r)
}

func (g *Guard) resolveRole(ctx context.Context, userID string) (domainauth.Role, error) {
	g.mu.Lock()
	role, ok := g.cache[userID]
	g.mu.Unlock()
	if ok {
		return role, nil
	}

	binding, err := g.roles.Resolve(ctx, userID)
	if err != nil {
		return domainauth.RoleUnresolved, err
	}
	g.mu.Lock()
	g.cache[userID] = binding.Role
	g.mu.Unlock()
	return binding.Role, nil
}

func (g *Guard) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	q := url.Values{"redirect_uri": {safeRedirectPath(r.URL.RequestURI())}}
	http.Redirect(w, r, g.signInPath+"?"+q.Encode(), http.StatusSeeOther)
}

func (g *Guard) record(ctx context.Context, event string, fields map[string]any) {
	if g.audit == nil {
		return
	}
	g.audit.Record(ctx, event, fields)
}
