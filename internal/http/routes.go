package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
)

// RouterServices contains the handlers and middleware dependencies for the router.
type RouterServices struct {
	Auth   *AuthHandlers
	Guard  *Guard
	Logger *slog.Logger
}

// NewRouter builds the HTTP handler tree: auth endpoints, guarded role
// surfaces, and health checks, wrapped in logging and panic recovery.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)

	registerAuthRoutes(mux, services.Auth)
	registerSurfaceRoutes(mux, services.Guard)

	var handler http.Handler = mux
	handler = Recover(logger)(handler)
	handler = Logging(logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/sign-in", h.SignIn)
	mux.HandleFunc("POST /auth/sign-up", h.SignUp)
	mux.HandleFunc("POST /auth/sign-out", h.SignOut)
	mux.HandleFunc("POST /auth/password", h.UpdatePassword)
	mux.HandleFunc("POST /auth/recover", h.SendRecovery)
	mux.HandleFunc("GET /auth/recovery", h.RecoveryLanding)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/state", h.State)
}

// registerSurfaceRoutes mounts the role-gated landing surfaces. The handlers
// only describe the surface; every byte behind them is protected by the guard.
func registerSurfaceRoutes(mux *http.ServeMux, guard *Guard) {
	mux.Handle("GET /admin", guard.Require(domainauth.RoleAdmin)(surfaceHandler("admin")))
	mux.Handle("GET /dashboard", guard.Require(domainauth.RoleClient)(surfaceHandler("dashboard")))
}

func surfaceHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := GetSessionFromContext(r.Context())
		body := map[string]any{
			"surface": name,
			"role":    string(GetRoleFromContext(r.Context())),
		}
		if session != nil {
			body["user"] = map[string]string{
				"id":    session.UserID,
				"email": session.Email,
			}
		}
		WriteJSON(w, http.StatusOK, body)
	})
}
