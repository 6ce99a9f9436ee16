package gotrue

// Package gotrue implements ports.IdentityProvider against a GoTrue-compatible
// identity API. Sessions returned by the provider are referenced by opaque IDs
// minted here; access tokens are verified locally against the provider JWKS.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// ProviderConfig holds configuration for the GoTrue provider.
type ProviderConfig struct {
	BaseURL     string
	APIKey      string
	JWKSURL     string
	Issuer      string
	EventBuffer int
	HTTPClient  *http.Client // Optional, defaults to a 10s-timeout client
}

// Provider implements the IdentityProvider interface using the GoTrue HTTP API.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	hub        *domainauth.Broadcaster
	verifier   *gooidc.IDTokenVerifier
}

// NewProvider creates a new GoTrue provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = cfg.BaseURL + "/.well-known/jwks.json"
	}
	if cfg.Issuer == "" {
		cfg.Issuer = cfg.BaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	keySet := gooidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
	verifier := gooidc.NewVerifier(cfg.Issuer, keySet, &gooidc.Config{
		// GoTrue access tokens carry the project audience, not a client ID.
		SkipClientIDCheck: true,
	})

	buffer := cfg.EventBuffer
	if buffer < 1 {
		buffer = 16
	}

	return &Provider{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		hub:        domainauth.NewBroadcaster(buffer),
		verifier:   verifier,
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

// tokenResponse is the GoTrue token grant payload.
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	RefreshToken string     `json:"refresh_token"`
	User         gotrueUser `json:"user"`
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// apiError is the GoTrue error payload. Older and newer versions disagree on
// field names, so all of them are tried.
type apiError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignInWithPassword performs a password grant and mints a new session reference.
func (p *Provider) SignInWithPassword(ctx context.Context, in ports.SignInInput) (*domainauth.Session, error) {
	var tok tokenResponse
	err := p.doJSON(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    in.Email,
		"password": in.Password,
	}, &tok)
	if err != nil {
		return nil, err
	}

	sess := p.sessionFromToken(tok)
	p.hub.Publish(domainauth.Event{Kind: domainauth.EventSignedIn, Session: sess})
	return sess, nil
}

// SignUp registers a new identity with the provider.
func (p *Provider) SignUp(ctx context.Context, in ports.SignUpInput) (*domainauth.Identity, error) {
	var user gotrueUser
	err := p.doJSON(ctx, http.MethodPost, "/signup", "", map[string]string{
		"email":    in.Email,
		"password": in.Password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &domainauth.Identity{UserID: user.ID, Email: user.Email}, nil
}

// CurrentSession returns the provider's view of the referenced session,
// refreshing it when the access token has expired. A session whose refresh
// token the provider no longer recognizes resolves to nil, not an error.
func (p *Provider) CurrentSession(ctx context.Context, ref *domainauth.Session) (*domainauth.Session, error) {
	if ref == nil {
		return nil, nil
	}
	if !ref.Expired() {
		return ref, nil
	}

	var tok tokenResponse
	err := p.doJSON(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": ref.RefreshToken,
	}, &tok)
	if err != nil {
		if apperrors.IsStaleRefreshToken(err) {
			return nil, nil
		}
		return nil, err
	}

	refreshed := p.sessionFromToken(tok)
	// Keep the reference ID stable across refreshes.
	refreshed.ID = ref.ID
	return refreshed, nil
}

// CurrentUser revalidates the referenced session and returns the identity its
// access token asserts. Verification happens locally against the JWKS.
func (p *Provider) CurrentUser(ctx context.Context, ref *domainauth.Session) (*domainauth.Identity, error) {
	sess, err := p.CurrentSession(ctx, ref)
	if err != nil || sess == nil {
		return nil, err
	}

	idTok, err := p.verifier.Verify(ctx, sess.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse access token claims: %w", claimsErr)
	}

	return &domainauth.Identity{
		UserID:    idTok.Subject,
		Email:     claims.Email,
		ExpiresAt: idTok.Expiry,
	}, nil
}

// SignOut revokes the session at the provider. A provider that has already
// forgotten the session counts as signed out.
func (p *Provider) SignOut(ctx context.Context, ref *domainauth.Session) error {
	if ref != nil {
		err := p.doJSON(ctx, http.MethodPost, "/logout", ref.AccessToken, nil, nil)
		if err != nil && !apperrors.IsStaleRefreshToken(err) {
			var httpErr *statusError
			if !errors.As(err, &httpErr) || httpErr.status != http.StatusUnauthorized {
				return err
			}
		}
	}
	p.hub.Publish(domainauth.Event{Kind: domainauth.EventSignedOut})
	return nil
}

// UpdateCredential changes the password for the session's user.
func (p *Provider) UpdateCredential(ctx context.Context, ref *domainauth.Session, newPassword string) error {
	if ref == nil {
		return errors.New("session is required")
	}
	err := p.doJSON(ctx, http.MethodPut, "/user", ref.AccessToken, map[string]string{
		"password": newPassword,
	}, nil)
	if err != nil {
		return err
	}
	p.hub.Publish(domainauth.Event{Kind: domainauth.EventUserUpdated, Session: ref})
	return nil
}

// SendRecovery asks the provider to email a password recovery link.
func (p *Provider) SendRecovery(ctx context.Context, email string) error {
	return p.doJSON(ctx, http.MethodPost, "/recover", "", map[string]string{
		"email": email,
	}, nil)
}

// VerifyRecovery exchanges a recovery token for a session and emits a
// PASSWORD_RECOVERY event.
func (p *Provider) VerifyRecovery(ctx context.Context, token string) (*domainauth.Session, error) {
	if token == "" {
		return nil, errors.New("recovery token is required")
	}

	var tok tokenResponse
	err := p.doJSON(ctx, http.MethodPost, "/verify", "", map[string]string{
		"type":  "recovery",
		"token": token,
	}, &tok)
	if err != nil {
		return nil, err
	}

	sess := p.sessionFromToken(tok)
	p.hub.Publish(domainauth.Event{Kind: domainauth.EventPasswordRecovery, Session: sess})
	return sess, nil
}

func (p *Provider) sessionFromToken(tok tokenResponse) *domainauth.Session {
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &domainauth.Session{
		ID:           uuid.NewString(),
		UserID:       tok.User.ID,
		Email:        tok.User.Email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

// statusError carries the HTTP status of a failed provider call alongside the
// provider's message text.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("provider returned status %d", e.status)
}

// doJSON issues one provider request. Bearer-authenticated calls route through
// an oauth2 token source so the Authorization header handling stays standard.
func (p *Provider) doJSON(ctx context.Context, method, path, accessToken string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	client := p.httpClient
	if accessToken != "" {
		authCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
		client = oauth2.NewClient(authCtx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "Bearer",
		}))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		return &statusError{status: resp.StatusCode, message: apiErr.text()}
	}

	if out != nil && len(data) > 0 {
		if unmarshalErr := json.Unmarshal(data, out); unmarshalErr != nil {
			return fmt.Errorf("decode provider response: %w", unmarshalErr)
		}
	}
	return nil
}

var _ ports.IdentityProvider = (*Provider)(nil)
