package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
	"github.com/sitetrack/sitetrack-api/internal/ports"
	"github.com/sitetrack/sitetrack-api/internal/service"
)

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Provider   ports.IdentityProvider
	Sessions   ports.SessionRefStore
	Roles      *service.RoleResolver
	Profiles   *service.ProfileProvisioner
	Cleaner    *service.SessionCleaner
	Passwords  *service.PasswordUpdateFlow
	Recovery   *service.RecoveryGate
	Reconciler *service.Reconciler

	// LandingForRole maps a resolved role to its post-sign-in route.
	LandingForRole func(domainauth.Role) string

	SignInPath   string
	CookieDomain string
	SessionTTL   time.Duration

	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookieMaxAge() int {
	ttl := h.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return int(ttl.Seconds())
}

func (h *AuthHandlers) landing(role domainauth.Role) string {
	if h.LandingForRole == nil {
		return "/"
	}
	return h.LandingForRole(role)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles the credentials sign-in endpoint.
// POST /auth/sign-in.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	session, err := h.Provider.SignInWithPassword(r.Context(), ports.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "invalid_credentials",
			Err:     err,
		})
		return
	}

	if err := h.Sessions.Save(r.Context(), *session); err != nil {
		h.logger().ErrorContext(r.Context(), "save session ref failed",
			"session_id", session.ID, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "session_store_failed",
			Err:     errors.New("unable to establish session"),
		})
		return
	}
	setSessionCookie(w, r, sessionCookieParams{
		Value:  session.ID,
		Domain: h.CookieDomain,
		MaxAge: h.cookieMaxAge(),
	})

	binding, err := h.Roles.Resolve(r.Context(), session.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			WriteError(w, ErrorParams{
				Code:    http.StatusForbidden,
				ErrCode: "no_profile",
				Err:     errors.New("account access has not been provisioned"),
			})
			return
		}
		h.logger().ErrorContext(r.Context(), "role resolution failed",
			"user_id", session.UserID, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "role_resolution_failed",
			Err:     errors.New("unable to determine account access"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user": map[string]string{
			"id":    session.UserID,
			"email": session.Email,
		},
		"role":        string(binding.Role),
		"redirect_to": h.landing(binding.Role),
	})
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles account registration.
// POST /auth/sign-up.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	identity, err := h.Provider.SignUp(r.Context(), ports.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "sign_up_failed",
			Err:     err,
		})
		return
	}

	// Best effort; the role resolver tolerates a row that lands later.
	if h.Profiles != nil {
		if _, err := h.Profiles.EnsureProfile(r.Context(), identity.UserID); err != nil {
			h.logger().WarnContext(r.Context(), "ensure profile failed",
				"user_id", identity.UserID, "error", err)
		}
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"user": map[string]string{
			"id":    identity.UserID,
			"email": identity.Email,
		},
	})
}

// SignOut handles the sign-out endpoint.
// POST /auth/sign-out.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	refID := ""
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		refID = cookie.Value
		if ref, getErr := h.Sessions.Get(r.Context(), refID); getErr == nil {
			if signOutErr := h.Provider.SignOut(r.Context(), &ref); signOutErr != nil {
				h.logger().WarnContext(r.Context(), "provider sign-out failed", "error", signOutErr)
			}
		}
	}

	// Local cleanup happens regardless of what the provider said.
	if h.Cleaner != nil {
		h.Cleaner.CleanAll(r.Context(), refID)
	}
	clearSessionCookie(w, r)

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "signed_out",
		"redirect_to": h.SignInPath,
	})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UpdatePassword handles password changes for the current session.
// POST /auth/password.
func (h *AuthHandlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	session := h.currentSessionRef(r)
	if session == nil {
		clearSessionCookie(w, r)
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("sign in to update your password"),
		})
		return
	}

	var req updatePasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.Passwords.Update(r.Context(), service.PasswordUpdateInput{
		Session:  session,
		Current:  req.CurrentPassword,
		Password: req.Password,
		Confirm:  req.ConfirmPassword,
		Recovery: h.Recovery.Active(r.URL.Query()),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "password_updated",
		"redirect_to": h.SignInPath,
	})
}

type sendRecoveryRequest struct {
	Email string `json:"email"`
}

// SendRecovery asks the provider to email a password recovery link.
// POST /auth/recover.
func (h *AuthHandlers) SendRecovery(w http.ResponseWriter, r *http.Request) {
	var req sendRecoveryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("email is required"),
		})
		return
	}

	if err := h.Provider.SendRecovery(r.Context(), req.Email); err != nil {
		// Do not reveal whether the address exists.
		h.logger().WarnContext(r.Context(), "send recovery failed", "error", err)
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recovery_sent"})
}

// RecoveryLanding is the entry point of an emailed recovery link.
// GET /auth/recovery?type=recovery&token=<token>.
//
// Entering through here wipes any stale signed-in state before the recovery
// session is established, then exchanges the token for a session scoped to
// the password update surface.
func (h *AuthHandlers) RecoveryLanding(w http.ResponseWriter, r *http.Request) {
	staleRef := ""
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		staleRef = cookie.Value
	}
	if !h.Recovery.Enter(r.Context(), r.URL.Query(), staleRef) {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "not_a_recovery_link",
			Err:     errors.New("recovery marker missing from link"),
		})
		return
	}
	clearSessionCookie(w, r)

	token := r.URL.Query().Get("token")
	if token == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_token",
			Err:     errors.New("recovery token is required"),
		})
		return
	}

	session, err := h.Provider.VerifyRecovery(r.Context(), token)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "invalid_recovery_token",
			Err:     err,
		})
		return
	}

	if err := h.Sessions.Save(r.Context(), *session); err != nil {
		h.logger().ErrorContext(r.Context(), "save recovery session failed",
			"session_id", session.ID, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "session_store_failed",
			Err:     errors.New("unable to establish recovery session"),
		})
		return
	}
	setSessionCookie(w, r, sessionCookieParams{
		Value:  session.ID,
		Domain: h.CookieDomain,
		MaxAge: h.cookieMaxAge(),
	})

	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "recovery",
		"view":   string(domainauth.ViewUpdatePassword),
	})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	session := h.currentSessionRef(r)
	if session == nil {
		clearSessionCookie(w, r)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	binding, err := h.Roles.Resolve(r.Context(), session.UserID)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "role resolution failed",
			"user_id", session.UserID, "error", err)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]string{
			"id":    session.UserID,
			"email": session.Email,
		},
		"role":       string(binding.Role),
		"expires_at": session.ExpiresAt,
	})
}

// State exposes the reconciler's derived view state as a versioned snapshot.
// GET /auth/state.
func (h *AuthHandlers) State(w http.ResponseWriter, _ *http.Request) {
	state := h.Reconciler.Snapshot()
	WriteJSON(w, http.StatusOK, map[string]any{
		"view":             string(state.View),
		"recovery_mode":    state.RecoveryMode,
		"password_updated": state.PasswordUpdated,
		"destination":      state.Destination,
		"error":            state.Err,
		"notice":           state.Notice,
		"version":          state.Version,
	})
}

// currentSessionRef loads and revalidates the request's session reference.
// Expired-but-refreshable sessions come back refreshed; a nil return means
// there is no live session.
func (h *AuthHandlers) currentSessionRef(r *http.Request) *domainauth.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	ref, err := h.Sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	current, err := h.Provider.CurrentSession(r.Context(), &ref)
	if err != nil || current == nil {
		return nil
	}
	if current.AccessToken != ref.AccessToken {
		if saveErr := h.Sessions.Save(r.Context(), *current); saveErr != nil {
			h.logger().WarnContext(r.Context(), "save refreshed session failed",
				"session_id", current.ID, "error", saveErr)
		}
	}
	return current
}
