package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sitetrack/sitetrack-api/config"
)

func TestBuildIdentityProviderMockMode(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	prov, err := BuildIdentityProvider(ProviderConfig{
		Auth: config.AuthConfig{
			Mode: config.AuthModeMock,
			DevAuth: config.DevAuthConfig{
				UserID: "dev-user",
				Email:  "dev@example.com",
			},
		},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("BuildIdentityProvider() error = %v", err)
	}
	if prov == nil {
		t.Fatal("BuildIdentityProvider() = nil, want provider")
	}
}

func TestBuildIdentityProviderMockModeRequiresIdentity(t *testing.T) {
	_, err := BuildIdentityProvider(ProviderConfig{
		Auth: config.AuthConfig{
			Mode:    config.AuthModeMock,
			DevAuth: config.DevAuthConfig{},
		},
	})
	if err == nil {
		t.Fatal("BuildIdentityProvider() error = nil, want error for missing dev identity")
	}
}

func TestBuildIdentityProviderGoTrueMode(t *testing.T) {
	auth := config.AuthConfig{
		Mode: config.AuthModeGoTrue,
		GoTrue: config.GoTrueConfig{
			BaseURL: "https://id.example.com/auth/v1",
		},
	}
	auth.Sanitize()

	prov, err := BuildIdentityProvider(ProviderConfig{Auth: auth})
	if err != nil {
		t.Fatalf("BuildIdentityProvider() error = %v", err)
	}
	if prov == nil {
		t.Fatal("BuildIdentityProvider() = nil, want provider")
	}
}

func TestBuildIdentityProviderUnknownMode(t *testing.T) {
	_, err := BuildIdentityProvider(ProviderConfig{
		Auth: config.AuthConfig{Mode: config.AuthMode("saml")},
	})
	if err == nil {
		t.Fatal("BuildIdentityProvider() error = nil, want error for unknown mode")
	}
}
