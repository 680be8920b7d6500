// Package directory manages the user accounts the rest of the system hangs
// off: registration, profile updates, activation state and login tracking.
package directory

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
	"gorm.io/gorm"
)

// Service handles all user account operations.
type Service struct {
	db        *gorm.DB
	cache     cache.Cache
	logger    *zap.Logger
	entityTTL time.Duration
}

// NewService creates a new user directory Service.
func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger, entityTTL time.Duration) *Service {
	return &Service{db: db, cache: c, logger: logger, entityTTL: entityTTL}
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left
// untouched.
type ProfileUpdate struct {
	DisplayName       *string `json:"display_name"`
	ProfileURL        *string `json:"profile_url"`
	AvatarURL         *string `json:"avatar_url"`
	CountryCode       *string `json:"country_code"`
	ProfileVisibility *int    `json:"profile_visibility"`
}

// Create registers a new user. The steam id must be unused.
func (svc *Service) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if u.SteamID == 0 {
		return nil, apperr.InvalidOperationf("steam id is required")
	}
	if u.Username == "" {
		return nil, apperr.InvalidOperationf("username is required")
	}

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.User{}).Where("steam_id = ?", u.SteamID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflictf("steam id %d already registered", u.SteamID)
		}
		if u.ProfileVisibility == 0 {
			u.ProfileVisibility = 1
		}
		u.IsActive = true
		return tx.Create(u).Error
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("user created",
		zap.Int64("user_id", u.ID),
		zap.Int64("steam_id", u.SteamID))
	return u, nil
}

// FindByID returns the user with the given id, consulting the cache first.
func (svc *Service) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	key := cache.UserKey(userID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var u model.User
		if json.Unmarshal([]byte(raw), &u) == nil {
			return &u, nil
		}
	}

	var u model.User
	if err := svc.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("user %d", userID)
		}
		return nil, err
	}
	svc.cacheUser(ctx, &u)
	return &u, nil
}

// FindBySteamID returns the user owning the given steam id.
func (svc *Service) FindBySteamID(ctx context.Context, steamID int64) (*model.User, error) {
	key := cache.UserSteamKey(steamID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var u model.User
		if json.Unmarshal([]byte(raw), &u) == nil {
			return &u, nil
		}
	}

	var u model.User
	if err := svc.db.WithContext(ctx).Where("steam_id = ?", steamID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("steam id %d", steamID)
		}
		return nil, err
	}
	svc.cacheUser(ctx, &u)
	return &u, nil
}

// FindByUsername returns the user with the exact username.
func (svc *Service) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := svc.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("user %q", username)
		}
		return nil, err
	}
	return &u, nil
}

// UpdateProfile applies a partial profile update with optimistic locking.
// expectedVersion must match the stored version; a stale writer gets Conflict.
func (svc *Service) UpdateProfile(ctx context.Context, userID int64, expectedVersion int64, upd ProfileUpdate) (*model.User, error) {
	var out *model.User
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		if err := tx.First(&u, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("user %d", userID)
			}
			return err
		}

		fields := map[string]interface{}{"version": gorm.Expr("version + 1")}
		if upd.DisplayName != nil {
			fields["display_name"] = *upd.DisplayName
		}
		if upd.ProfileURL != nil {
			fields["profile_url"] = *upd.ProfileURL
		}
		if upd.AvatarURL != nil {
			fields["avatar_url"] = *upd.AvatarURL
		}
		if upd.CountryCode != nil {
			fields["country_code"] = *upd.CountryCode
		}
		if upd.ProfileVisibility != nil {
			fields["profile_visibility"] = *upd.ProfileVisibility
		}

		res := tx.Model(&model.User{}).
			Where("id = ? AND version = ?", userID, expectedVersion).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflictf("user %d was modified concurrently, expected version %d", userID, expectedVersion)
		}
		if err := tx.First(&u, userID).Error; err != nil {
			return err
		}
		out = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.evictUser(ctx, out)
	return out, nil
}

// Deactivate soft-disables the account. Deactivated users stay in the
// database but drop out of search and the leaderboards.
func (svc *Service) Deactivate(ctx context.Context, userID int64) error {
	return svc.setActive(ctx, userID, false)
}

// Activate re-enables a previously deactivated account.
func (svc *Service) Activate(ctx context.Context, userID int64) error {
	return svc.setActive(ctx, userID, true)
}

func (svc *Service) setActive(ctx context.Context, userID int64, active bool) error {
	u, err := svc.loadForWrite(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsActive == active {
		return nil
	}
	if err := svc.db.WithContext(ctx).Model(u).Update("is_active", active).Error; err != nil {
		return err
	}
	svc.evictUser(ctx, u)
	svc.logger.Info("user activation changed",
		zap.Int64("user_id", userID),
		zap.Bool("active", active))
	return nil
}

// RecordLogin stamps the user's last login time.
func (svc *Service) RecordLogin(ctx context.Context, userID int64) error {
	u, err := svc.loadForWrite(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := svc.db.WithContext(ctx).Model(u).Update("last_login", &now).Error; err != nil {
		return err
	}
	svc.evictUser(ctx, u)
	return nil
}

func (svc *Service) loadForWrite(ctx context.Context, userID int64) (*model.User, error) {
	var u model.User
	if err := svc.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("user %d", userID)
		}
		return nil, err
	}
	return &u, nil
}

// SearchActiveByName returns active users whose username contains the
// fragment, case-insensitive, capped at limit.
func (svc *Service) SearchActiveByName(ctx context.Context, fragment string, limit int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var users []model.User
	err := svc.db.WithContext(ctx).
		Where("is_active = ? AND LOWER(username) LIKE ?", true, "%"+strings.ToLower(fragment)+"%").
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// ActiveSince returns active users who logged in after the cutoff.
func (svc *Service) ActiveSince(ctx context.Context, since time.Time) ([]model.User, error) {
	var users []model.User
	err := svc.db.WithContext(ctx).
		Where("is_active = ? AND last_login IS NOT NULL AND last_login > ?", true, since).
		Order("last_login DESC").
		Find(&users).Error
	return users, err
}

// Exists reports whether a user row with the id exists, active or not.
func (svc *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Count(&n).Error
	return n > 0, err
}

// CountActive returns how many accounts are currently active.
func (svc *Service) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.User{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

func (svc *Service) cacheUser(ctx context.Context, u *model.User) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	for _, key := range []string{cache.UserKey(u.ID), cache.UserSteamKey(u.SteamID)} {
		if err := svc.cache.Set(ctx, key, string(raw), svc.entityTTL); err != nil {
			svc.logger.Warn("user cache write failed", zap.Error(err))
		}
	}
}

func (svc *Service) evictUser(ctx context.Context, u *model.User) {
	if err := svc.cache.Del(ctx,
		cache.UserKey(u.ID),
		cache.UserSteamKey(u.SteamID),
		cache.DashboardKey(u.ID),
	); err != nil {
		svc.logger.Warn("user cache eviction failed", zap.Error(err))
	}
}
