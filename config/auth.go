package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the identity provider mode for the application.
type AuthMode string

const (
	// AuthModeGoTrue uses a GoTrue-compatible identity provider.
	AuthModeGoTrue AuthMode = "gotrue"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "gotrue", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: gotrue, mock)", v)
	}
}

// GoTrueConfig contains GoTrue identity provider configuration.
type GoTrueConfig struct {
	// BaseURL is the root of the GoTrue HTTP API (e.g. "https://id.example.com/auth/v1").
	BaseURL string `env:"BASE_URL"     envDefault:"http://localhost:9999"`

	// APIKey is sent as the "apikey" header on every provider request.
	APIKey string `env:"API_KEY"`

	// JWKSURL is the JSON Web Key Set endpoint used to verify access tokens.
	// Defaults to BaseURL + "/.well-known/jwks.json" when empty.
	JWKSURL string `env:"JWKS_URL"`

	// Issuer is the expected "iss" claim on access tokens.
	// Defaults to BaseURL when empty.
	Issuer string `env:"ISSUER"`

	// Timeout bounds each HTTP call to the provider.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize fills derived GoTrue fields from BaseURL.
func (g *GoTrueConfig) Sanitize() {
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.JWKSURL == "" {
		g.JWKSURL = g.BaseURL + "/.well-known/jwks.json"
	}
	if g.Issuer == "" {
		g.Issuer = g.BaseURL
	}
	if g.Timeout <= 0 {
		g.Timeout = 10 * time.Second
	}
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID string `env:"USER_ID" envDefault:"dev-user"`
	Email  string `env:"EMAIL"   envDefault:"dev@example.com"`
	Role   string `env:"ROLE"    envDefault:"admin"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"gotrue"`

	// GoTrue configuration (used when Mode=gotrue).
	GoTrue GoTrueConfig `envPrefix:"GOTRUE_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// PasswordMinLength is the minimum accepted password length for
	// sign-up and password updates.
	PasswordMinLength int `env:"AUTH_PASSWORD_MIN_LENGTH" envDefault:"6"`

	// RecoveryParam is the query parameter name whose value "recovery" marks
	// a password recovery entry link.
	RecoveryParam string `env:"AUTH_RECOVERY_PARAM" envDefault:"type"`

	// SessionTTL bounds how long a session reference is retained after its
	// last refresh.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`

	// AdminLanding is the route admins land on after sign-in.
	AdminLanding string `env:"AUTH_ADMIN_LANDING" envDefault:"/admin"`

	// ClientLanding is the route clients land on after sign-in.
	ClientLanding string `env:"AUTH_CLIENT_LANDING" envDefault:"/dashboard"`

	// SignInPath is where unauthenticated requests to guarded routes are sent.
	SignInPath string `env:"AUTH_SIGN_IN_PATH" envDefault:"/auth/sign-in"`
}

// Sanitize applies guardrails to authentication configuration values.
func (a *AuthConfig) Sanitize() {
	a.GoTrue.Sanitize()
	if a.PasswordMinLength < 1 {
		a.PasswordMinLength = 6
	}
	if a.RecoveryParam == "" {
		a.RecoveryParam = "type"
	}
	if a.SessionTTL <= 0 {
		a.SessionTTL = 24 * time.Hour
	}
	if a.AdminLanding == "" {
		a.AdminLanding = "/admin"
	}
	if a.ClientLanding == "" {
		a.ClientLanding = "/dashboard"
	}
	if a.SignInPath == "" {
		a.SignInPath = "/auth/sign-in"
	}
}

// LandingForRole returns the landing route for a role name, falling back to
// the sign-in path for roles without a destination of their own.
func (a *AuthConfig) LandingForRole(role string) string {
	switch role {
	case "admin":
		return a.AdminLanding
	case "client":
		return a.ClientLanding
	default:
		return a.SignInPath
	}
}
