package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sitetrack/sitetrack-api/internal/data/pgxutil"
	"github.com/sitetrack/sitetrack-api/internal/domain/model"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
)

const profileColumns = "user_id, role, password_reset_in_progress, created_at, updated_at"

// ProfileRepo provides database operations for user profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a new ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// GetByUserID retrieves the profile row for a user.
// Returns ErrProfileNotFound when no row exists; other failures come back
// classified by MapDBError so callers can distinguish a missing row from a
// broken query.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	var out model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+profileColumns+`
			FROM profiles WHERE user_id = $1`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// Upsert inserts a profile row or updates the existing one for the same user.
// A nil Role in the request leaves an existing role untouched.
func (r *ProfileRepo) Upsert(ctx context.Context, req *model.UpsertProfileRequest) (*model.Profile, error) {
	if req == nil {
		return nil, errors.New("upsert profile request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	var out model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO profiles (user_id, role, password_reset_in_progress, created_at, updated_at)
			VALUES ($1, $2, false, $3, $3)
			ON CONFLICT (user_id) DO UPDATE SET
				role = COALESCE(EXCLUDED.role, profiles.role),
				updated_at = EXCLUDED.updated_at
			RETURNING `+profileColumns,
			strings.TrimSpace(req.UserID),
			req.Role,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// SetResetInProgress flips the password recovery latch for a user, but only
// when its current value matches expectCurrent. Returns true when a row was
// updated and false when the latch had already moved (or no row exists).
func (r *ProfileRepo) SetResetInProgress(
	ctx context.Context,
	userID string,
	value, expectCurrent bool,
) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("user ID is required")
	}

	var updated bool
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE profiles
			SET password_reset_in_progress = $2, updated_at = $3
			WHERE user_id = $1 AND password_reset_in_progress = $4`,
			userID,
			value,
			r.timeProvider.Now().UTC(),
			expectCurrent,
		)
		if err != nil {
			return err
		}
		updated = tag.RowsAffected() > 0
		return nil
	}); err != nil {
		return false, fmt.Errorf("failed to set reset flag: %w", apperrors.MapDBError(err))
	}
	return updated, nil
}
