package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// ReconcilerOptions groups dependencies for Reconciler.
type ReconcilerOptions struct {
	Provider    ports.IdentityProvider
	Cleaner     *SessionCleaner
	Roles       *RoleResolver
	Profiles    ports.ProfileStore
	SessionRefs ports.SessionRefStore
	Navigator   ports.Navigator
	Audit       ports.AuditSink

	// LandingForRole maps a resolved role to its post-sign-in route.
	LandingForRole func(domainauth.Role) string

	// SignInPath is where a signed-out user is sent.
	SignInPath string

	Logger *slog.Logger
}

// Reconciler consumes provider auth lifecycle events and reconciles the
// derived view state, navigation, and profile recovery latch. It owns its
// provider subscription for its whole lifetime: Start subscribes, Dispose
// unsubscribes and waits for the loop to drain. Events are handled strictly
// one at a time in arrival order.
type Reconciler struct {
	provider    ports.IdentityProvider
	cleaner     *SessionCleaner
	roles       *RoleResolver
	profiles    ports.ProfileStore
	sessionRefs ports.SessionRefStore
	navigator   ports.Navigator
	audit       ports.AuditSink
	landing     func(domainauth.Role) string
	signInPath  string
	logger      *slog.Logger

	mu              sync.Mutex
	state           domainauth.ViewState
	recovery        bool
	passwordUpdated bool
	ref             *domainauth.Session

	startMu sync.Mutex
	started bool
	unsub   func()
	done    chan struct{}
}

// NewReconciler constructs a new Reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
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
	return &Reconciler{
		provider:    opts.Provider,
		cleaner:     opts.Cleaner,
		roles:       opts.Roles,
		profiles:    opts.Profiles,
		sessionRefs: opts.SessionRefs,
		navigator:   opts.Navigator,
		audit:       opts.Audit,
		landing:     landing,
		signInPath:  signInPath,
		logger:      logger,
		state:       domainauth.InitialViewState(),
	}
}

// Start subscribes to the provider event stream and begins the reconcile
// loop. It returns once the subscription is established; the loop runs until
// the stream closes or Dispose is called.
func (r *Reconciler) Start(ctx context.Context) error {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	if r.started {
		return errors.New("reconciler already started")
	}

	events, unsub, err := r.provider.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	r.started = true
	r.unsub = unsub
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		for ev := range events {
			r.handle(ctx, ev)
		}
	}()
	return nil
}

// Dispose releases the provider subscription and waits for the loop to exit.
// Safe to call more than once.
func (r *Reconciler) Dispose() {
	r.startMu.Lock()
	unsub, done := r.unsub, r.done
	r.unsub = nil
	r.startMu.Unlock()

	if unsub != nil {
		unsub()
	}
	if done != nil {
		<-done
	}
}

// Snapshot returns a copy of the current view state.
func (r *Reconciler) Snapshot() domainauth.ViewState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// update applies fn to the view state under lock and bumps the version.
func (r *Reconciler) update(fn func(*domainauth.ViewState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
	r.state.Version++
}

func (r *Reconciler) handle(ctx context.Context, ev domainauth.Event) {
	switch ev.Kind {
	case domainauth.EventSignedIn:
		r.handleSignedIn(ctx, ev)
	case domainauth.EventPasswordRecovery:
		r.handlePasswordRecovery(ctx, ev)
	case domainauth.EventSignedOut:
		r.handleSignedOut(ctx)
	case domainauth.EventUserUpdated:
		r.handleUserUpdated(ctx, ev)
	default:
		r.logger.Debug("ignoring unknown auth event", "kind", string(ev.Kind))
	}
}

func (r *Reconciler) handleSignedIn(ctx context.Context, ev domainauth.Event) {
	if ev.Session == nil {
		r.logger.Warn("SIGNED_IN event without session, ignoring")
		return
	}

	r.trackSession(ctx, ev.Session)

	r.mu.Lock()
	inRecovery := r.recovery
	justUpdated := r.passwordUpdated
	r.mu.Unlock()

	// A recovery link signs the user in as a side effect. That sign-in must
	// not navigate away from the password update surface.
	if inRecovery {
		r.record(ctx, "signed_in_during_recovery", map[string]any{"user_id": ev.Session.UserID})
		return
	}

	// A completed password update also emits SIGNED_IN. The user is headed
	// for the sign-in surface to use the new credential; stay there.
	if justUpdated {
		r.record(ctx, "signed_in_after_password_update", map[string]any{"user_id": ev.Session.UserID})
		return
	}

	binding, err := r.roles.Resolve(ctx, ev.Session.UserID)
	if err != nil {
		r.logger.Error("role resolution failed", "user_id", ev.Session.UserID, "error", err)
		// A session whose access cannot be determined does not stay live.
		r.cleanTrackedSession(ctx)
		r.update(func(s *domainauth.ViewState) {
			s.Err = "Unable to determine account access. Please try again."
			s.Destination = ""
		})
		r.record(ctx, "role_resolution_failed", map[string]any{
			"user_id": ev.Session.UserID,
			"error":   err.Error(),
		})
		return
	}

	dest := r.landing(binding.Role)
	r.update(func(s *domainauth.ViewState) {
		s.View = domainauth.ViewSignIn
		s.Err = ""
		s.Notice = ""
		s.Destination = dest
	})
	if r.navigator != nil {
		r.navigator.Navigate(ctx, dest)
	}
	r.record(ctx, "signed_in", map[string]any{
		"user_id":     ev.Session.UserID,
		"role":        string(binding.Role),
		"destination": dest,
	})
}

func (r *Reconciler) handlePasswordRecovery(ctx context.Context, ev domainauth.Event) {
	r.mu.Lock()
	r.recovery = true
	r.passwordUpdated = false
	r.mu.Unlock()

	if ev.Session != nil {
		r.trackSession(ctx, ev.Session)

		if r.profiles != nil {
			latched, err := r.profiles.SetResetInProgress(ctx, ev.Session.UserID, true, false)
			if err != nil {
				r.logger.Error("set recovery latch failed", "user_id", ev.Session.UserID, "error", err)
			} else if !latched {
				r.logger.Info("recovery latch already set", "user_id", ev.Session.UserID)
			}
		}
	}

	r.update(func(s *domainauth.ViewState) {
		s.View = domainauth.ViewUpdatePassword
		s.RecoveryMode = true
		s.PasswordUpdated = false
		s.Err = ""
		s.Notice = ""
		s.Destination = ""
	})
	r.record(ctx, "password_recovery", sessionFields(ev.Session))
}

func (r *Reconciler) handleSignedOut(ctx context.Context) {
	r.mu.Lock()
	r.recovery = false
	r.passwordUpdated = false
	r.mu.Unlock()

	r.cleanTrackedSession(ctx)

	r.update(func(s *domainauth.ViewState) {
		*s = domainauth.ViewState{View: domainauth.ViewSignIn, Version: s.Version}
	})
	if r.navigator != nil {
		r.navigator.Navigate(ctx, r.signInPath)
	}
	r.record(ctx, "signed_out", nil)
}

func (r *Reconciler) handleUserUpdated(ctx context.Context, ev domainauth.Event) {
	r.mu.Lock()
	inRecovery := r.recovery
	userID := ""
	if ev.Session != nil {
		userID = ev.Session.UserID
	} else if r.ref != nil {
		userID = r.ref.UserID
	}
	r.mu.Unlock()

	// Outside recovery a USER_UPDATED carries no state the reconciler owns.
	if !inRecovery {
		r.record(ctx, "user_updated", sessionFields(ev.Session))
		return
	}

	if userID != "" && r.profiles != nil {
		cleared, err := r.profiles.SetResetInProgress(ctx, userID, false, true)
		if err != nil {
			r.logger.Error("clear recovery latch failed", "user_id", userID, "error", err)
			// Stay on the password update surface so the user can retry;
			// the latch must not be left set behind a completed update.
			r.update(func(s *domainauth.ViewState) {
				s.View = domainauth.ViewUpdatePassword
				s.Err = "Could not finish the password update. Please try again."
			})
			r.record(ctx, "recovery_latch_clear_failed", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
			return
		}
		if !cleared {
			r.logger.Info("recovery latch already cleared", "user_id", userID)
		}
	}

	r.mu.Lock()
	r.recovery = false
	r.passwordUpdated = true
	r.mu.Unlock()

	r.cleanTrackedSession(ctx)

	r.update(func(s *domainauth.ViewState) {
		s.View = domainauth.ViewSignIn
		s.RecoveryMode = false
		s.PasswordUpdated = true
		s.Err = ""
		s.Notice = "Password updated. Sign in with your new password."
		s.Destination = ""
	})
	if r.navigator != nil {
		r.navigator.Navigate(ctx, r.signInPath)
	}
	r.record(ctx, "password_updated", sessionFields(ev.Session))
}

// cleanTrackedSession drops the tracked session reference and runs cleanup.
func (r *Reconciler) cleanTrackedSession(ctx context.Context) {
	r.mu.Lock()
	refID := ""
	if r.ref != nil {
		refID = r.ref.ID
	}
	r.ref = nil
	r.mu.Unlock()

	if r.cleaner != nil {
		r.cleaner.CleanAll(ctx, refID)
	}
}

// trackSession remembers the active session reference and persists it.
func (r *Reconciler) trackSession(ctx context.Context, sess *domainauth.Session) {
	r.mu.Lock()
	r.ref = sess
	r.mu.Unlock()

	if r.sessionRefs != nil {
		if err := r.sessionRefs.Save(ctx, *sess); err != nil {
			r.logger.Warn("save session ref failed", "session_id", sess.ID, "error", err)
		}
	}
}

func (r *Reconciler) record(ctx context.Context, event string, fields map[string]any) {
	if r.audit == nil {
		return
	}
	r.audit.Record(ctx, event, fields)
}

func sessionFields(sess *domainauth.Session) map[string]any {
	if sess == nil {
		return nil
	}
	return map[string]any{"user_id": sess.UserID}
}
