package model_test

import (
	"testing"
	"time"

	"github.com/steamlytics/server/model"
	"github.com/steamlytics/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// User
	u := &model.User{SteamID: 76561198000000001, Username: "test_user", DisplayName: "Tester"}
	require.NoError(t, db.Create(u).Error)
	assert.Greater(t, u.ID, int64(0))

	var found model.User
	require.NoError(t, db.First(&found, u.ID).Error)
	assert.Equal(t, "test_user", found.Username)
	assert.True(t, found.IsActive)

	// Game
	g := &model.Game{SteamAppID: 440, Name: "Team Fortress 2"}
	require.NoError(t, db.Create(g).Error)
	assert.Greater(t, g.ID, int64(0))

	// LibraryEntry
	entry := &model.LibraryEntry{
		UserID: u.ID, GameID: g.ID,
		PlaytimeTotal: 120, PurchasedAt: time.Now(),
	}
	require.NoError(t, db.Create(entry).Error)

	// Friendship
	f := &model.Friendship{RequesterID: u.ID, AddresseeID: u.ID + 1, Status: model.FriendshipPending}
	require.NoError(t, db.Create(f).Error)

	// ActivityLog
	al := &model.ActivityLog{
		TraceID: "trace-001", Action: "library.sync",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(al).Error)
}

func TestAutoMigrate_UniqueConstraints(t *testing.T) {
	db := testutil.SetupTestDB(t)

	u := &model.User{SteamID: 1001, Username: "dup"}
	require.NoError(t, db.Create(u).Error)
	assert.Error(t, db.Create(&model.User{SteamID: 1001, Username: "dup2"}).Error)

	g := &model.Game{SteamAppID: 570, Name: "Dota 2"}
	require.NoError(t, db.Create(g).Error)
	assert.Error(t, db.Create(&model.Game{SteamAppID: 570, Name: "Dota 2 again"}).Error)

	entry := &model.LibraryEntry{UserID: u.ID, GameID: g.ID, PurchasedAt: time.Now()}
	require.NoError(t, db.Create(entry).Error)
	assert.Error(t, db.Create(&model.LibraryEntry{UserID: u.ID, GameID: g.ID, PurchasedAt: time.Now()}).Error)

	f := &model.Friendship{RequesterID: 1, AddresseeID: 2}
	require.NoError(t, db.Create(f).Error)
	assert.Error(t, db.Create(&model.Friendship{RequesterID: 1, AddresseeID: 2}).Error)
}
