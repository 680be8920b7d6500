// Package library manages per-user game libraries: ownership rows, playtime
// counters and the statistics aggregated from them.
package library

import (
	"context"
	"errors"
	"time"

	"github.com/steamlytics/server/apperr"
	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles all library operations.
type Service struct {
	db         *gorm.DB
	cache      cache.Cache
	logger     *zap.Logger
	derivedTTL time.Duration
}

// NewService creates a new library Service.
func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger, derivedTTL time.Duration) *Service {
	return &Service{db: db, cache: c, logger: logger, derivedTTL: derivedTTL}
}

// AddGame adds a game to the user's library. Re-adding an owned game is an
// upsert on the playtime counters, not an error, so repeated syncs converge.
func (svc *Service) AddGame(ctx context.Context, e *model.LibraryEntry) (*model.LibraryEntry, error) {
	if e.PlaytimeTotal < 0 || e.PlaytimeTwoWeeks < 0 {
		return nil, apperr.InvalidOperationf("playtime cannot be negative")
	}

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.User{}).Where("id = ?", e.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFoundf("user %d", e.UserID)
		}
		if err := tx.Model(&model.Game{}).Where("id = ?", e.GameID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFoundf("game %d", e.GameID)
		}

		if e.PurchasedAt.IsZero() {
			e.PurchasedAt = time.Now()
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns(e.LastPlayed)),
		}).Create(e).Error; err != nil {
			return err
		}
		// On the conflict path Create leaves e with a zero id and the
		// caller's timestamps; hand back the persisted row instead.
		return tx.Where("user_id = ? AND game_id = ?", e.UserID, e.GameID).First(e).Error
	})
	if err != nil {
		return nil, err
	}
	svc.evictUser(ctx, e.UserID)
	return e, nil
}

// upsertColumns lists the columns an entry upsert overwrites. A nil incoming
// last played keeps whatever is already stored, so a partial snapshot does
// not erase a known timestamp.
func upsertColumns(lastPlayed *time.Time) []string {
	cols := []string{"playtime_total", "playtime_two_weeks", "updated_at"}
	if lastPlayed != nil {
		cols = append(cols, "last_played")
	}
	return cols
}

// Get returns the user's entry for the game, with the catalog row preloaded.
func (svc *Service) Get(ctx context.Context, userID, gameID int64) (*model.LibraryEntry, error) {
	var e model.LibraryEntry
	err := svc.db.WithContext(ctx).Preload("Game").
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("user %d does not own game %d", userID, gameID)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdatePlaytime replaces both playtime counters and stamps last played.
func (svc *Service) UpdatePlaytime(ctx context.Context, userID, gameID, totalMinutes, twoWeekMinutes int64) (*model.LibraryEntry, error) {
	if totalMinutes < 0 || twoWeekMinutes < 0 {
		return nil, apperr.InvalidOperationf("playtime cannot be negative")
	}
	e, err := svc.Get(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	fields := map[string]interface{}{
		"playtime_total":     totalMinutes,
		"playtime_two_weeks": twoWeekMinutes,
	}
	if totalMinutes > e.PlaytimeTotal {
		fields["last_played"] = &now
	}
	if err := svc.db.WithContext(ctx).Model(e).Updates(fields).Error; err != nil {
		return nil, err
	}
	svc.evictUser(ctx, userID)
	return e, nil
}

// UpdateLastPlayed stamps the last played time without touching counters.
func (svc *Service) UpdateLastPlayed(ctx context.Context, userID, gameID int64, playedAt time.Time) error {
	e, err := svc.Get(ctx, userID, gameID)
	if err != nil {
		return err
	}
	if err := svc.db.WithContext(ctx).Model(e).Update("last_played", &playedAt).Error; err != nil {
		return err
	}
	svc.evictUser(ctx, userID)
	return nil
}

// Remove deletes the entry from the user's library.
func (svc *Service) Remove(ctx context.Context, userID, gameID int64) error {
	res := svc.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Delete(&model.LibraryEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("user %d does not own game %d", userID, gameID)
	}
	svc.evictUser(ctx, userID)
	return nil
}

// List returns the user's whole library, newest purchases first.
func (svc *Service) List(ctx context.Context, userID int64) ([]model.LibraryEntry, error) {
	var entries []model.LibraryEntry
	err := svc.db.WithContext(ctx).Preload("Game").
		Where("user_id = ?", userID).
		Order("purchased_at DESC, game_id ASC").
		Find(&entries).Error
	return entries, err
}

// ListByPlaytime returns the user's library ordered by total playtime,
// most played first. Ties resolve to the lower game id.
func (svc *Service) ListByPlaytime(ctx context.Context, userID int64, limit int) ([]model.LibraryEntry, error) {
	var entries []model.LibraryEntry
	q := svc.db.WithContext(ctx).Preload("Game").
		Where("user_id = ?", userID).
		Order("playtime_total DESC, game_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

// RecentlyPlayed returns entries the user has touched, most recent first.
func (svc *Service) RecentlyPlayed(ctx context.Context, userID int64, limit int) ([]model.LibraryEntry, error) {
	var entries []model.LibraryEntry
	q := svc.db.WithContext(ctx).Preload("Game").
		Where("user_id = ? AND last_played IS NOT NULL", userID).
		Order("last_played DESC, game_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

// MinPlaytime returns entries with at least the given total minutes.
func (svc *Service) MinPlaytime(ctx context.Context, userID, minMinutes int64) ([]model.LibraryEntry, error) {
	var entries []model.LibraryEntry
	err := svc.db.WithContext(ctx).Preload("Game").
		Where("user_id = ? AND playtime_total >= ?", userID, minMinutes).
		Order("playtime_total DESC, game_id ASC").
		Find(&entries).Error
	return entries, err
}

// MostPlayed returns the entry with the highest total playtime.
// Ties resolve to the lower game id.
func (svc *Service) MostPlayed(ctx context.Context, userID int64) (*model.LibraryEntry, error) {
	var e model.LibraryEntry
	err := svc.db.WithContext(ctx).Preload("Game").
		Where("user_id = ? AND playtime_total > 0", userID).
		Order("playtime_total DESC, game_id ASC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("user %d has no played games", userID)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// TopPlayersByGame returns the entries with the most playtime on a game,
// across all users.
func (svc *Service) TopPlayersByGame(ctx context.Context, gameID int64, limit int) ([]model.LibraryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var entries []model.LibraryEntry
	err := svc.db.WithContext(ctx).
		Where("game_id = ? AND playtime_total > 0", gameID).
		Order("playtime_total DESC, user_id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// RecentPurchases returns entries purchased after the cutoff.
func (svc *Service) RecentPurchases(ctx context.Context, userID int64, since time.Time) ([]model.LibraryEntry, error) {
	var entries []model.LibraryEntry
	err := svc.db.WithContext(ctx).Preload("Game").
		Where("user_id = ? AND purchased_at > ?", userID, since).
		Order("purchased_at DESC, game_id ASC").
		Find(&entries).Error
	return entries, err
}

// OwnsGame reports whether the user's library contains the game.
func (svc *Service) OwnsGame(ctx context.Context, userID, gameID int64) (bool, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.LibraryEntry{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Count(&n).Error
	return n > 0, err
}

// Count returns how many games the user owns.
func (svc *Service) Count(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.LibraryEntry{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

// CountPlayed returns how many owned games have any recorded playtime.
func (svc *Service) CountPlayed(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.LibraryEntry{}).
		Where("user_id = ? AND playtime_total > 0", userID).
		Count(&n).Error
	return n, err
}

// OwnerIDs returns the ids of every user who owns the game.
func (svc *Service) OwnerIDs(ctx context.Context, gameID int64) ([]int64, error) {
	var ids []int64
	err := svc.db.WithContext(ctx).Model(&model.LibraryEntry{}).
		Where("game_id = ?", gameID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// GameIDs returns the ids of every game in the user's library.
func (svc *Service) GameIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := svc.db.WithContext(ctx).Model(&model.LibraryEntry{}).
		Where("user_id = ?", userID).
		Pluck("game_id", &ids).Error
	return ids, err
}

// evictUser drops the cached projections a library mutation invalidates.
// Recommendations and dashboards are scored from friends' libraries, so the
// accepted friends' derived keys go too, not just the mutating user's.
func (svc *Service) evictUser(ctx context.Context, userID int64) {
	keys := []string{
		cache.LibraryKey(userID),
		cache.StatsKey(userID),
		cache.RecsKey(userID),
		cache.DashboardKey(userID),
	}
	for _, friendID := range svc.acceptedFriendIDs(ctx, userID) {
		keys = append(keys,
			cache.RecsKey(friendID),
			cache.DashboardKey(friendID),
			cache.CommonGamesKey(userID, friendID),
		)
	}
	if err := svc.cache.Del(ctx, keys...); err != nil {
		svc.logger.Warn("library cache eviction failed", zap.Error(err))
	}
}

func (svc *Service) acceptedFriendIDs(ctx context.Context, userID int64) []int64 {
	var friendships []model.Friendship
	err := svc.db.WithContext(ctx).
		Where("status = ? AND (requester_id = ? OR addressee_id = ?)",
			model.FriendshipAccepted, userID, userID).
		Find(&friendships).Error
	if err != nil {
		svc.logger.Warn("friend lookup for eviction failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	ids := make([]int64, 0, len(friendships))
	for _, f := range friendships {
		if f.RequesterID == userID {
			ids = append(ids, f.AddresseeID)
		} else {
			ids = append(ids, f.RequesterID)
		}
	}
	return ids
}
