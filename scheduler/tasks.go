package scheduler

import (
	"context"
	"time"

	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/social"
	"go.uber.org/zap"
)

const (
	taskFriendshipCleanup  = "friendship_cleanup"
	taskLeaderboardRefresh = "leaderboard_refresh"

	// Lock TTL bounds how long a crashed holder can stall the next run.
	maintenanceLockTTL = 5 * time.Minute
)

// MaintenanceConfig controls the periodic background jobs.
type MaintenanceConfig struct {
	CleanupMaxAgeDays   int
	CleanupInterval     time.Duration
	LeaderboardInterval time.Duration
}

// RegisterMaintenance wires the recurring friendship jobs: purging stale
// blocked and declined edges, and refreshing the friends leaderboard. Each
// run takes a short cache lock so only one instance fires per interval when
// several servers share a redis backend.
func (s *Scheduler) RegisterMaintenance(friends *social.Service, c cache.Cache, cfg MaintenanceConfig) {
	s.Every(taskFriendshipCleanup, cfg.CleanupInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if !s.acquireLock(ctx, c, taskFriendshipCleanup) {
			return
		}
		defer s.releaseLock(ctx, c, taskFriendshipCleanup)
		if _, err := friends.CleanupOldRejected(ctx, cfg.CleanupMaxAgeDays); err != nil {
			s.logger.Error("friendship cleanup failed", zap.Error(err))
		}
	})

	s.Every(taskLeaderboardRefresh, cfg.LeaderboardInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if !s.acquireLock(ctx, c, taskLeaderboardRefresh) {
			return
		}
		defer s.releaseLock(ctx, c, taskLeaderboardRefresh)
		if _, err := friends.RefreshLeaderboard(ctx); err != nil {
			s.logger.Error("leaderboard refresh failed", zap.Error(err))
		}
	})
}

func (s *Scheduler) acquireLock(ctx context.Context, c cache.Cache, task string) bool {
	ok, err := c.SetNX(ctx, "lock:"+task, "1", maintenanceLockTTL)
	if err != nil {
		s.logger.Warn("maintenance lock failed", zap.String("task", task), zap.Error(err))
		return false
	}
	return ok
}

func (s *Scheduler) releaseLock(ctx context.Context, c cache.Cache, task string) {
	if err := c.Del(ctx, "lock:"+task); err != nil {
		s.logger.Warn("maintenance lock release failed", zap.String("task", task), zap.Error(err))
	}
}
