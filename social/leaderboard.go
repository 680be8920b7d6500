package social

import (
	"context"
	"strconv"

	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
)

const leaderboardTop = 100

// FriendCount is one leaderboard row.
type FriendCount struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	FriendCount int64  `json:"friend_count"`
}

// Leaderboard returns the users with the most accepted friends, best first.
// It serves from the sorted set when populated and falls back to the DB,
// refreshing the set as it goes.
func (svc *Service) Leaderboard(ctx context.Context, limit int) ([]FriendCount, error) {
	if limit <= 0 || limit > leaderboardTop {
		limit = 20
	}

	members, err := svc.cache.ZRevRange(ctx, cache.FriendsLeaderboard, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		rows := make([]FriendCount, 0, len(members))
		for _, m := range members {
			userID, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			score, _ := svc.cache.ZScore(ctx, cache.FriendsLeaderboard, m)
			rows = append(rows, FriendCount{UserID: userID, FriendCount: int64(score)})
		}
		svc.fillUsernames(ctx, rows)
		return rows, nil
	}

	rows, err := svc.leaderboardFromDB(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		_ = svc.cache.ZAdd(ctx, cache.FriendsLeaderboard, float64(row.FriendCount),
			strconv.FormatInt(row.UserID, 10))
	}
	return rows, nil
}

// RefreshLeaderboard rebuilds the sorted set from the DB. Called periodically
// by the scheduler and exposed on the admin surface.
func (svc *Service) RefreshLeaderboard(ctx context.Context) (int, error) {
	rows, err := svc.leaderboardFromDB(ctx, leaderboardTop)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := svc.cache.ZAdd(ctx, cache.FriendsLeaderboard, float64(row.FriendCount),
			strconv.FormatInt(row.UserID, 10)); err != nil {
			svc.logger.Warn("leaderboard refresh write failed", zap.Error(err))
		}
	}
	return len(rows), nil
}

// leaderboardFromDB counts accepted edges per user over both directions, so
// a user who only ever received requests still ranks.
func (svc *Service) leaderboardFromDB(ctx context.Context, limit int) ([]FriendCount, error) {
	var rows []FriendCount
	err := svc.db.WithContext(ctx).Raw(`
		SELECT user_id, COUNT(*) AS friend_count FROM (
			SELECT requester_id AS user_id FROM friendships WHERE status = ?
			UNION ALL
			SELECT addressee_id AS user_id FROM friendships WHERE status = ?
		) sides
		GROUP BY user_id
		ORDER BY friend_count DESC, user_id ASC
		LIMIT ?`,
		model.FriendshipAccepted, model.FriendshipAccepted, limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	svc.fillUsernames(ctx, rows)
	return rows, nil
}

func (svc *Service) fillUsernames(ctx context.Context, rows []FriendCount) {
	if len(rows) == 0 {
		return
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	var users []model.User
	if err := svc.db.WithContext(ctx).Select("id, username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		svc.logger.Warn("leaderboard username lookup failed", zap.Error(err))
		return
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	for i := range rows {
		rows[i].Username = names[rows[i].UserID]
	}
}
