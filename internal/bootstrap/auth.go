package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/sitetrack/sitetrack-api/config"
	"github.com/sitetrack/sitetrack-api/internal/adapters/devauth"
	"github.com/sitetrack/sitetrack-api/internal/adapters/gotrue"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// ProviderConfig contains configuration for the identity provider.
type ProviderConfig struct {
	Auth        config.AuthConfig
	EventBuffer int
	Logger      *slog.Logger
}

// BuildIdentityProvider creates the identity provider for the configured
// auth mode. Mock mode builds an in-memory provider for local development;
// everything else talks to a GoTrue-compatible identity API.
//
//nolint:ireturn // the provider port is the whole point of this constructor.
func BuildIdentityProvider(cfg ProviderConfig) (ports.IdentityProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if cfg.Logger != nil {
			cfg.Logger.Warn("mock auth mode enabled; do not use in production",
				"user_id", cfg.Auth.DevAuth.UserID)
		}
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:      cfg.Auth.DevAuth.UserID,
			Email:       cfg.Auth.DevAuth.Email,
			EventBuffer: cfg.EventBuffer,
		})
		if err != nil {
			return nil, fmt.Errorf("create dev auth provider: %w", err)
		}
		return prov, nil

	case config.AuthModeGoTrue:
		prov, err := gotrue.NewProvider(gotrue.ProviderConfig{
			BaseURL:     cfg.Auth.GoTrue.BaseURL,
			APIKey:      cfg.Auth.GoTrue.APIKey,
			JWKSURL:     cfg.Auth.GoTrue.JWKSURL,
			Issuer:      cfg.Auth.GoTrue.Issuer,
			EventBuffer: cfg.EventBuffer,
		})
		if err != nil {
			return nil, fmt.Errorf("create gotrue provider: %w", err)
		}
		return prov, nil

	default:
		return nil, fmt.Errorf("unknown auth mode: %q", cfg.Auth.Mode)
	}
}
