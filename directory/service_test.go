package directory

import (
	"context"
	"testing"
	"time"

	"github.com/steamlytics/server/apperr"
	"github.com/steamlytics/server/model"
	"github.com/steamlytics/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	return NewService(db, c, zap.NewNop(), time.Minute)
}

func TestCreate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &model.User{SteamID: 76561198000000001, Username: "gordon"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.True(t, u.IsActive)
	assert.Equal(t, 1, u.ProfileVisibility)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &model.User{Username: "noid"})
	assert.ErrorIs(t, err, apperr.InvalidOperation)

	_, err = svc.Create(ctx, &model.User{SteamID: 42})
	assert.ErrorIs(t, err, apperr.InvalidOperation)
}

func TestCreate_DuplicateSteamID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "first"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &model.User{SteamID: 42, Username: "second"})
	assert.ErrorIs(t, err, apperr.Conflict)
}

func TestFind(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "gordon"})
	require.NoError(t, err)

	byID, err := svc.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "gordon", byID.Username)

	// Second lookup is served from the cache.
	again, err := svc.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, again.ID)

	bySteam, err := svc.FindBySteamID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySteam.ID)

	byName, err := svc.FindByUsername(ctx, "gordon")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = svc.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, apperr.NotFound)
	_, err = svc.FindBySteamID(ctx, 9999)
	assert.ErrorIs(t, err, apperr.NotFound)
	_, err = svc.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, apperr.NotFound)
}

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "gordon"})
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, u.ID, u.Version, ProfileUpdate{
		DisplayName: strPtr("Gordon F."),
		CountryCode: strPtr("US"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Gordon F.", updated.DisplayName)
	assert.Equal(t, "US", updated.CountryCode)
	assert.Equal(t, u.Version+1, updated.Version)
	// Untouched fields survive partial updates.
	assert.Equal(t, "gordon", updated.Username)
}

func TestUpdateProfile_StaleVersion(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "gordon"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, u.ID, u.Version, ProfileUpdate{DisplayName: strPtr("one")})
	require.NoError(t, err)

	// Replaying the original version must be rejected.
	_, err = svc.UpdateProfile(ctx, u.ID, u.Version, ProfileUpdate{DisplayName: strPtr("two")})
	assert.ErrorIs(t, err, apperr.Conflict)
}

func TestActivateDeactivate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "gordon"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, u.ID))
	got, err := svc.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, svc.Activate(ctx, u.ID))
	got, err = svc.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	assert.ErrorIs(t, svc.Deactivate(ctx, 9999), apperr.NotFound)
}

func TestRecordLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "gordon"})
	require.NoError(t, err)
	require.Nil(t, u.LastLogin)

	require.NoError(t, svc.RecordLogin(ctx, u.ID))
	got, err := svc.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.WithinDuration(t, time.Now(), *got.LastLogin, 5*time.Second)
}

func TestSearchActiveByName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i, name := range []string{"alyx", "Alyssa", "barney"} {
		_, err := svc.Create(ctx, &model.User{SteamID: int64(1000 + i), Username: name})
		require.NoError(t, err)
	}
	inactive, err := svc.Create(ctx, &model.User{SteamID: 77, Username: "alfred"})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, inactive.ID))

	got, err := svc.SearchActiveByName(ctx, "aly", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alyssa", got[0].Username)
	assert.Equal(t, "alyx", got[1].Username)

	got, err = svc.SearchActiveByName(ctx, "al", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2, "inactive users are excluded")
}

func TestActiveSince(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "gordon"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &model.User{SteamID: 43, Username: "neverlogged"})
	require.NoError(t, err)
	require.NoError(t, svc.RecordLogin(ctx, u.ID))

	got, err := svc.ActiveSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, u.ID, got[0].ID)
}

func TestExistsAndCountActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, &model.User{SteamID: 42, Username: "gordon"})
	require.NoError(t, err)

	ok, err := svc.Exists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.Exists(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, svc.Deactivate(ctx, u.ID))
	n, err = svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
