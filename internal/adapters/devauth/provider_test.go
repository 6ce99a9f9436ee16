package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

func newDev(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestProvider_SignInLifecycle(t *testing.T) {
	p := newDev(t)
	ctx := context.Background()

	events, unsub, err := p.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer unsub()

	sess, err := p.SignInWithPassword(ctx, ports.SignInInput{Email: "dev@example.com", Password: "anything"})
	require.NoError(t, err)
	require.NotNil(t, sess)

	select {
	case ev := <-events:
		assert.Equal(t, domainauth.EventSignedIn, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("no SIGNED_IN event")
	}

	got, err := p.CurrentSession(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, got)

	id, err := p.CurrentUser(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.UserID)

	require.NoError(t, p.SignOut(ctx, sess))

	got, err = p.CurrentSession(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProvider_RejectsWrongEmail(t *testing.T) {
	p := newDev(t)

	_, err := p.SignInWithPassword(context.Background(), ports.SignInInput{Email: "other@example.com", Password: "x"})
	require.Error(t, err)
}

func TestProvider_VerifyRecovery(t *testing.T) {
	p := newDev(t)
	ctx := context.Background()

	events, unsub, err := p.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer unsub()

	sess, err := p.VerifyRecovery(ctx, "any-token")
	require.NoError(t, err)
	require.NotNil(t, sess)

	select {
	case ev := <-events:
		assert.Equal(t, domainauth.EventPasswordRecovery, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("no PASSWORD_RECOVERY event")
	}

	require.NoError(t, p.UpdateCredential(ctx, sess, "new-password"))
}

func TestProvider_ConfigValidation(t *testing.T) {
	_, err := NewProvider(Config{Email: "dev@example.com"})
	require.Error(t, err)

	_, err = NewProvider(Config{UserID: "dev-user"})
	require.Error(t, err)
}
