// Package catalog manages the game catalog: lookups, search and the metadata
// writes that keep catalog rows current with the upstream store pages.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/steamlytics/server/apperr"
	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles all game catalog operations.
type Service struct {
	db        *gorm.DB
	cache     cache.Cache
	logger    *zap.Logger
	entityTTL time.Duration
}

// NewService creates a new catalog Service.
func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger, entityTTL time.Duration) *Service {
	return &Service{db: db, cache: c, logger: logger, entityTTL: entityTTL}
}

// Save creates a new catalog row. The steam app id must be unused.
func (svc *Service) Save(ctx context.Context, g *model.Game) (*model.Game, error) {
	if g.SteamAppID == 0 {
		return nil, apperr.InvalidOperationf("steam app id is required")
	}
	if g.Name == "" {
		return nil, apperr.InvalidOperationf("game name is required")
	}

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Game{}).Where("steam_app_id = ?", g.SteamAppID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflictf("app id %d already in catalog", g.SteamAppID)
		}
		return tx.Create(g).Error
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// FindOrCreate returns the row for the app id, inserting a stub when none
// exists. Concurrent callers race safely on the unique index.
func (svc *Service) FindOrCreate(ctx context.Context, steamAppID int64, name string) (*model.Game, error) {
	if steamAppID == 0 {
		return nil, apperr.InvalidOperationf("steam app id is required")
	}
	g := &model.Game{SteamAppID: steamAppID, Name: name}
	err := svc.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "steam_app_id"}},
			DoNothing: true,
		}).
		Create(g).Error
	if err != nil {
		return nil, err
	}
	if g.ID == 0 {
		// Lost the race or the row already existed.
		return svc.FindByAppID(ctx, steamAppID)
	}
	return g, nil
}

// FindByID returns the game with the given id, consulting the cache first.
func (svc *Service) FindByID(ctx context.Context, gameID int64) (*model.Game, error) {
	key := cache.GameKey(gameID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var g model.Game
		if json.Unmarshal([]byte(raw), &g) == nil {
			return &g, nil
		}
	}

	var g model.Game
	if err := svc.db.WithContext(ctx).First(&g, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("game %d", gameID)
		}
		return nil, err
	}
	svc.cacheGame(ctx, &g)
	return &g, nil
}

// FindByAppID returns the game with the given steam app id.
func (svc *Service) FindByAppID(ctx context.Context, steamAppID int64) (*model.Game, error) {
	key := cache.GameAppKey(steamAppID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var g model.Game
		if json.Unmarshal([]byte(raw), &g) == nil {
			return &g, nil
		}
	}

	var g model.Game
	if err := svc.db.WithContext(ctx).Where("steam_app_id = ?", steamAppID).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("app id %d", steamAppID)
		}
		return nil, err
	}
	svc.cacheGame(ctx, &g)
	return &g, nil
}

// FindByAppIDs returns the catalog rows for the given app ids. Unknown ids
// are simply absent from the result.
func (svc *Service) FindByAppIDs(ctx context.Context, steamAppIDs []int64) ([]model.Game, error) {
	if len(steamAppIDs) == 0 {
		return nil, nil
	}
	var games []model.Game
	err := svc.db.WithContext(ctx).Where("steam_app_id IN ?", steamAppIDs).Find(&games).Error
	return games, err
}

// UpdateInfo replaces the descriptive metadata of a game.
func (svc *Service) UpdateInfo(ctx context.Context, gameID int64, name, description, developer, publisher string, releaseDate *time.Time) (*model.Game, error) {
	if name == "" {
		return nil, apperr.InvalidOperationf("game name is required")
	}
	return svc.update(ctx, gameID, map[string]interface{}{
		"name":         name,
		"description":  description,
		"developer":    developer,
		"publisher":    publisher,
		"release_date": releaseDate,
	})
}

// UpdatePrices sets the initial and current price, in cents.
func (svc *Service) UpdatePrices(ctx context.Context, gameID int64, initial, current *int64) (*model.Game, error) {
	if (initial != nil && *initial < 0) || (current != nil && *current < 0) {
		return nil, apperr.InvalidOperationf("price cannot be negative")
	}
	return svc.update(ctx, gameID, map[string]interface{}{
		"price_initial": initial,
		"price_current": current,
	})
}

// UpdateLabels replaces the tag, category and genre maps.
func (svc *Service) UpdateLabels(ctx context.Context, gameID int64, tags, categories, genres datatypes.JSONMap) (*model.Game, error) {
	return svc.update(ctx, gameID, map[string]interface{}{
		"tags":       tags,
		"categories": categories,
		"genres":     genres,
	})
}

func (svc *Service) update(ctx context.Context, gameID int64, fields map[string]interface{}) (*model.Game, error) {
	var out *model.Game
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g model.Game
		if err := tx.First(&g, gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("game %d", gameID)
			}
			return err
		}
		if err := tx.Model(&g).Updates(fields).Error; err != nil {
			return err
		}
		if err := tx.First(&g, gameID).Error; err != nil {
			return err
		}
		out = &g
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.evictGame(ctx, out)
	return out, nil
}

// SearchByName returns games whose name contains the fragment,
// case-insensitive.
func (svc *Service) SearchByName(ctx context.Context, fragment string, limit int) ([]model.Game, error) {
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(fragment)+"%").
		Order("name ASC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// SearchByDeveloper returns games by the given developer.
func (svc *Service) SearchByDeveloper(ctx context.Context, developer string, limit int) ([]model.Game, error) {
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Where("LOWER(developer) = ?", strings.ToLower(developer)).
		Order("name ASC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// SearchByPublisher returns games by the given publisher.
func (svc *Service) SearchByPublisher(ctx context.Context, publisher string, limit int) ([]model.Game, error) {
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Where("LOWER(publisher) = ?", strings.ToLower(publisher)).
		Order("name ASC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// ReleasedAfter returns games released strictly after the cutoff, newest
// first.
func (svc *Service) ReleasedAfter(ctx context.Context, cutoff time.Time, limit int) ([]model.Game, error) {
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Where("release_date IS NOT NULL AND release_date > ?", cutoff).
		Order("release_date DESC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// ReleasedBetween returns games released in [from, to], oldest first.
func (svc *Service) ReleasedBetween(ctx context.Context, from, to time.Time, limit int) ([]model.Game, error) {
	if to.Before(from) {
		return nil, apperr.InvalidOperationf("release range end precedes start")
	}
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Where("release_date IS NOT NULL AND release_date BETWEEN ? AND ?", from, to).
		Order("release_date ASC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// PriceRange returns games whose current price falls in [min, max] cents.
func (svc *Service) PriceRange(ctx context.Context, min, max int64, limit int) ([]model.Game, error) {
	if min < 0 || max < min {
		return nil, apperr.InvalidOperationf("invalid price range [%d, %d]", min, max)
	}
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Where("price_current IS NOT NULL AND price_current BETWEEN ? AND ?", min, max).
		Order("price_current ASC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// FreeGames returns games with no current price.
func (svc *Service) FreeGames(ctx context.Context, limit int) ([]model.Game, error) {
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Where("price_current IS NULL OR price_current = 0").
		Order("name ASC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// RecentlyAdded returns the newest catalog rows.
func (svc *Service) RecentlyAdded(ctx context.Context, limit int) ([]model.Game, error) {
	var games []model.Game
	err := svc.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Find(&games).Error
	return games, err
}

// GamePopularity pairs a game with how many libraries contain it.
type GamePopularity struct {
	Game       model.Game `json:"game"`
	OwnerCount int64      `json:"owner_count"`
}

// MostPopular returns games ordered by owner count. Ties resolve to the
// lower game id.
func (svc *Service) MostPopular(ctx context.Context, limit int) ([]GamePopularity, error) {
	limit = clampLimit(limit)
	type row struct {
		GameID     int64
		OwnerCount int64
	}
	var rows []row
	err := svc.db.WithContext(ctx).
		Model(&model.LibraryEntry{}).
		Select("game_id, COUNT(*) AS owner_count").
		Group("game_id").
		Order("owner_count DESC, game_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.GameID)
	}
	var games []model.Game
	if err := svc.db.WithContext(ctx).Where("id IN ?", ids).Find(&games).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}

	out := make([]GamePopularity, 0, len(rows))
	for _, r := range rows {
		g, ok := byID[r.GameID]
		if !ok {
			continue
		}
		out = append(out, GamePopularity{Game: g, OwnerCount: r.OwnerCount})
	}
	return out, nil
}

// SimilarByCommonPlayers returns games most often co-owned with the given
// one, ranked by shared owner count.
func (svc *Service) SimilarByCommonPlayers(ctx context.Context, gameID int64, limit int) ([]GamePopularity, error) {
	if _, err := svc.FindByID(ctx, gameID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	type row struct {
		GameID      int64
		SharedCount int64
	}
	var rows []row
	err := svc.db.WithContext(ctx).Raw(`
		SELECT other.game_id AS game_id, COUNT(*) AS shared_count
		FROM library_entries base
		JOIN library_entries other
		  ON other.user_id = base.user_id AND other.game_id <> base.game_id
		WHERE base.game_id = ?
		GROUP BY other.game_id
		ORDER BY shared_count DESC, game_id ASC
		LIMIT ?`, gameID, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.GameID)
	}
	var games []model.Game
	if err := svc.db.WithContext(ctx).Where("id IN ?", ids).Find(&games).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}

	out := make([]GamePopularity, 0, len(rows))
	for _, r := range rows {
		if g, ok := byID[r.GameID]; ok {
			out = append(out, GamePopularity{Game: g, OwnerCount: r.SharedCount})
		}
	}
	return out, nil
}

// OwnerCount returns how many libraries contain the game.
func (svc *Service) OwnerCount(ctx context.Context, gameID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.LibraryEntry{}).
		Where("game_id = ?", gameID).Count(&n).Error
	return n, err
}

// Count returns the catalog size.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Game{}).Count(&n).Error
	return n, err
}

func (svc *Service) cacheGame(ctx context.Context, g *model.Game) {
	raw, err := json.Marshal(g)
	if err != nil {
		return
	}
	for _, key := range []string{cache.GameKey(g.ID), cache.GameAppKey(g.SteamAppID)} {
		if err := svc.cache.Set(ctx, key, string(raw), svc.entityTTL); err != nil {
			svc.logger.Warn("game cache write failed", zap.Error(err))
		}
	}
}

func (svc *Service) evictGame(ctx context.Context, g *model.Game) {
	if err := svc.cache.Del(ctx, cache.GameKey(g.ID), cache.GameAppKey(g.SteamAppID)); err != nil {
		svc.logger.Warn("game cache eviction failed", zap.Error(err))
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
