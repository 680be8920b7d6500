package scheduler

import (
	"testing"
	"time"

	"github.com/steamlytics/server/model"
	"github.com/steamlytics/server/social"
	"github.com/steamlytics/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterMaintenance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	friends := social.NewService(db, c, zap.NewNop(), time.Minute)

	old := time.Now().AddDate(0, 0, -60)
	stale := &model.Friendship{RequesterID: 1, AddresseeID: 2, Status: model.FriendshipDeclined}
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Model(stale).UpdateColumn("updated_at", old).Error)

	s := New(zap.NewNop())
	defer s.Stop()
	s.RegisterMaintenance(friends, c, MaintenanceConfig{
		CleanupMaxAgeDays:   30,
		CleanupInterval:     30 * time.Millisecond,
		LeaderboardInterval: 30 * time.Millisecond,
	})

	assert.ElementsMatch(t, []string{taskFriendshipCleanup, taskLeaderboardRefresh}, s.Names())

	assert.Eventually(t, func() bool {
		var n int64
		db.Model(&model.Friendship{}).Count(&n)
		return n == 0
	}, 3*time.Second, 20*time.Millisecond)
}
