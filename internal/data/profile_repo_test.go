package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitetrack/sitetrack-api/internal/domain/auth"
	"github.com/sitetrack/sitetrack-api/internal/domain/model"
	apperrors "github.com/sitetrack/sitetrack-api/internal/errors"
	"github.com/sitetrack/sitetrack-api/internal/testutil"
)

func testUserID() string {
	return fmt.Sprintf("user-%d", time.Now().UnixNano())
}

func TestProfileRepo_Upsert_Get(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewProfileRepo(db)
		userID := testUserID()

		// insert without a role
		p, err := repo.Upsert(ctx, &model.UpsertProfileRequest{UserID: userID})
		require.NoError(t, err)
		assert.Equal(t, userID, p.UserID)
		assert.Nil(t, p.Role)
		assert.False(t, p.PasswordResetInProgress)
		assert.Equal(t, auth.RoleUnresolved, p.ResolvedRole())

		// get round-trips
		got, err := repo.GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, p.UserID, got.UserID)

		// upsert with a role sets it
		role := "admin"
		p, err = repo.Upsert(ctx, &model.UpsertProfileRequest{UserID: userID, Role: &role})
		require.NoError(t, err)
		require.NotNil(t, p.Role)
		assert.Equal(t, auth.RoleAdmin, p.ResolvedRole())

		// upsert without a role leaves the existing role untouched
		p, err = repo.Upsert(ctx, &model.UpsertProfileRequest{UserID: userID})
		require.NoError(t, err)
		require.NotNil(t, p.Role)
		assert.Equal(t, "admin", *p.Role)
	})
}

func TestProfileRepo_GetByUserID_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)

		_, err := repo.GetByUserID(context.Background(), "no-such-user")
		require.ErrorIs(t, err, ErrProfileNotFound)
	})
}

func TestProfileRepo_Upsert_CheckViolationIsValidation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)

		// "unresolved" is a legal value of the domain enum but the table only
		// stores granted roles; the constraint failure comes back classified.
		role := "unresolved"
		_, err := repo.Upsert(context.Background(), &model.UpsertProfileRequest{
			UserID: testUserID(),
			Role:   &role,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestProfileRepo_GetByUserID_EmptyID(t *testing.T) {
	repo := NewProfileRepo(nil)
	_, err := repo.GetByUserID(context.Background(), "  ")
	require.Error(t, err)
}

func TestProfileRepo_SetResetInProgress(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewProfileRepo(db)
		userID := testUserID()

		_, err := repo.Upsert(ctx, &model.UpsertProfileRequest{UserID: userID})
		require.NoError(t, err)

		// false -> true succeeds
		updated, err := repo.SetResetInProgress(ctx, userID, true, false)
		require.NoError(t, err)
		assert.True(t, updated)

		p, err := repo.GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.True(t, p.PasswordResetInProgress)

		// a second false -> true attempt loses the race
		updated, err = repo.SetResetInProgress(ctx, userID, true, false)
		require.NoError(t, err)
		assert.False(t, updated)

		// true -> false clears the latch
		updated, err = repo.SetResetInProgress(ctx, userID, false, true)
		require.NoError(t, err)
		assert.True(t, updated)

		// unknown user never matches
		updated, err = repo.SetResetInProgress(ctx, "no-such-user", true, false)
		require.NoError(t, err)
		assert.False(t, updated)
	})
}
