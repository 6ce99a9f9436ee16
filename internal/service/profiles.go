package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sitetrack/sitetrack-api/internal/domain/model"
	"github.com/sitetrack/sitetrack-api/internal/ports"
)

// ProfileProvisionerOptions groups dependencies for ProfileProvisioner.
type ProfileProvisionerOptions struct {
	Profiles ports.ProfileStore
	Logger   *slog.Logger
}

// ProfileProvisioner creates the profile row a new account needs. The row
// starts without a role; an operator assigns one later, which is why the
// role resolver tolerates both missing rows and roleless rows.
type ProfileProvisioner struct {
	profiles ports.ProfileStore
	logger   *slog.Logger
}

// NewProfileProvisioner constructs a new ProfileProvisioner.
func NewProfileProvisioner(opts ProfileProvisionerOptions) *ProfileProvisioner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileProvisioner{profiles: opts.Profiles, logger: logger}
}

// EnsureProfile upserts a profile row for userID, preserving any role an
// existing row already carries.
func (p *ProfileProvisioner) EnsureProfile(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := p.profiles.Upsert(ctx, &model.UpsertProfileRequest{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	p.logger.Debug("profile ensured", "user_id", userID)
	return profile, nil
}
