package gotrue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// fakeGoTrue is a minimal GoTrue-shaped test server.
type fakeGoTrue struct {
	password     string
	refreshToken string
	revoked      bool
	logoutStatus int
	samePassword bool
}

func newFakeGoTrue(t *testing.T) (*fakeGoTrue, *httptest.Server) {
	t.Helper()
	f := &fakeGoTrue{
		password:     "hunter22",
		refreshToken: "rt-1",
		logoutStatus: http.StatusNoContent,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != f.password {
				writeAPIError(w, http.StatusBadRequest, "invalid login credentials")
				return
			}
			f.writeToken(w)
		case "refresh_token":
			if f.revoked || body["refresh_token"] != f.refreshToken {
				writeAPIError(w, http.StatusBadRequest, "refresh token not found")
				return
			}
			f.writeToken(w)
		default:
			writeAPIError(w, http.StatusBadRequest, "unsupported grant type")
		}
	})
	mux.HandleFunc("POST /signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "user-new", "email": body["email"]})
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(f.logoutStatus)
	})
	mux.HandleFunc("PUT /user", func(w http.ResponseWriter, _ *http.Request) {
		if f.samePassword {
			writeAPIError(w, http.StatusUnprocessableEntity,
				"New password should be different from the same password as before")
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /recover", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /verify", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["token"] != "recovery-tok" {
			writeAPIError(w, http.StatusUnauthorized, "invalid recovery token")
			return
		}
		f.writeToken(w)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeGoTrue) writeToken(w http.ResponseWriter) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "at-1",
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": f.refreshToken,
		"user":          map[string]string{"id": "user-1", "email": "user@example.com"},
	})
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"msg": msg})
}

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func waitEvent(t *testing.T, ch <-chan domainauth.Event) domainauth.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domainauth.Event{}
	}
}

func TestProvider_SignInWithPassword(t *testing.T) {
	_, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)
	ctx := context.Background()

	events, unsub, err := p.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer unsub()

	sess, err := p.SignInWithPassword(ctx, ports.SignInInput{Email: "user@example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "at-1", sess.AccessToken)
	assert.False(t, sess.Expired())

	ev := waitEvent(t, events)
	assert.Equal(t, domainauth.EventSignedIn, ev.Kind)
	require.NotNil(t, ev.Session)
	assert.Equal(t, sess.ID, ev.Session.ID)
}

func TestProvider_SignInWithPassword_BadCredentials(t *testing.T) {
	_, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)

	_, err := p.SignInWithPassword(context.Background(), ports.SignInInput{
		Email:    "user@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid login credentials")
}

func TestProvider_CurrentSession_RefreshesExpired(t *testing.T) {
	_, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)

	ref := &domainauth.Session{
		ID:           "sess-1",
		UserID:       "user-1",
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	sess, err := p.CurrentSession(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "sess-1", sess.ID, "reference ID must stay stable across refreshes")
	assert.Equal(t, "at-1", sess.AccessToken)
	assert.False(t, sess.Expired())
}

func TestProvider_CurrentSession_StaleRefreshToken(t *testing.T) {
	f, srv := newFakeGoTrue(t)
	f.revoked = true
	p := newTestProvider(t, srv)

	ref := &domainauth.Session{
		ID:           "sess-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	sess, err := p.CurrentSession(context.Background(), ref)
	require.NoError(t, err, "a revoked refresh token means signed out, not failure")
	assert.Nil(t, sess)
}

func TestProvider_CurrentSession_NilAndFresh(t *testing.T) {
	_, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)
	ctx := context.Background()

	sess, err := p.CurrentSession(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, sess)

	fresh := &domainauth.Session{ID: "s", AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour)}
	got, err := p.CurrentSession(ctx, fresh)
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestProvider_SignOut(t *testing.T) {
	f, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)
	ctx := context.Background()

	events, unsub, err := p.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer unsub()

	t.Run("normal sign out", func(t *testing.T) {
		ref := &domainauth.Session{ID: "s", AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, p.SignOut(ctx, ref))
		assert.Equal(t, domainauth.EventSignedOut, waitEvent(t, events).Kind)
	})

	t.Run("provider already forgot the session", func(t *testing.T) {
		f.logoutStatus = http.StatusUnauthorized
		ref := &domainauth.Session{ID: "s", AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, p.SignOut(ctx, ref))
		assert.Equal(t, domainauth.EventSignedOut, waitEvent(t, events).Kind)
	})

	t.Run("nil session still emits the event", func(t *testing.T) {
		require.NoError(t, p.SignOut(ctx, nil))
		assert.Equal(t, domainauth.EventSignedOut, waitEvent(t, events).Kind)
	})
}

func TestProvider_UpdateCredential(t *testing.T) {
	f, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)
	ctx := context.Background()

	events, unsub, err := p.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer unsub()

	ref := &domainauth.Session{ID: "s", AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, p.UpdateCredential(ctx, ref, "new-password"))
	assert.Equal(t, domainauth.EventUserUpdated, waitEvent(t, events).Kind)

	f.samePassword = true
	err = p.UpdateCredential(ctx, ref, "new-password")
	require.Error(t, err)
	assert.True(t, apperrors.IsSamePassword(err))
}

func TestProvider_SignUp(t *testing.T) {
	_, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)

	id, err := p.SignUp(context.Background(), ports.SignUpInput{Email: "new@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "user-new", id.UserID)
	assert.Equal(t, "new@example.com", id.Email)
}

func TestProvider_VerifyRecovery(t *testing.T) {
	_, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)
	ctx := context.Background()

	events, unsub, err := p.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer unsub()

	sess, err := p.VerifyRecovery(ctx, "recovery-tok")
	require.NoError(t, err)
	require.NotNil(t, sess)

	ev := waitEvent(t, events)
	assert.Equal(t, domainauth.EventPasswordRecovery, ev.Kind)
	require.NotNil(t, ev.Session)

	_, err = p.VerifyRecovery(ctx, "bad-tok")
	require.Error(t, err)
}

func TestProvider_SendRecovery(t *testing.T) {
	_, srv := newFakeGoTrue(t)
	p := newTestProvider(t, srv)

	require.NoError(t, p.SendRecovery(context.Background(), "user@example.com"))
}
