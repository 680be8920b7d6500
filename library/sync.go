package library

import (
	"context"
	"time"

	"github.com/steamlytics/server/apperr"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncEntry is one game as reported by an upstream library snapshot.
type SyncEntry struct {
	SteamAppID       int64      `json:"steam_app_id" binding:"required"`
	Name             string     `json:"name"`
	PlaytimeTotal    int64      `json:"playtime_total"`
	PlaytimeTwoWeeks int64      `json:"playtime_two_weeks"`
	LastPlayed       *time.Time `json:"last_played"`
}

// Sync reconciles the user's library with an upstream snapshot in a single
// transaction. Unknown games get stub catalog rows; existing entries have
// their counters overwritten. Entries absent from the snapshot are kept,
// a snapshot is additive.
func (svc *Service) Sync(ctx context.Context, userID int64, entries []SyncEntry) (int, error) {
	for _, in := range entries {
		if in.SteamAppID == 0 {
			return 0, apperr.InvalidOperationf("sync entry missing steam app id")
		}
		if in.PlaytimeTotal < 0 || in.PlaytimeTwoWeeks < 0 {
			return 0, apperr.InvalidOperationf("sync entry for app %d has negative playtime", in.SteamAppID)
		}
	}

	synced := 0
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFoundf("user %d", userID)
		}

		now := time.Now()
		for _, in := range entries {
			g := &model.Game{SteamAppID: in.SteamAppID, Name: in.Name}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "steam_app_id"}},
				DoNothing: true,
			}).Create(g).Error; err != nil {
				return err
			}
			if g.ID == 0 {
				if err := tx.Where("steam_app_id = ?", in.SteamAppID).First(g).Error; err != nil {
					return err
				}
			}

			e := &model.LibraryEntry{
				UserID:           userID,
				GameID:           g.ID,
				PlaytimeTotal:    in.PlaytimeTotal,
				PlaytimeTwoWeeks: in.PlaytimeTwoWeeks,
				PurchasedAt:      now,
				LastPlayed:       in.LastPlayed,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
				DoUpdates: clause.AssignmentColumns(upsertColumns(in.LastPlayed)),
			}).Create(e).Error; err != nil {
				return err
			}
			synced++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	svc.evictUser(ctx, userID)
	svc.logger.Info("library synced",
		zap.Int64("user_id", userID),
		zap.Int("entries", synced))
	return synced, nil
}
