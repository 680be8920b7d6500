package model

import "time"

// User is one platform account tracked by the analytics backend.
// Users are soft-deactivated through IsActive; the public flow never
// hard-deletes a row.
type User struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"user_id"`
	SteamID           int64      `gorm:"uniqueIndex;not null" json:"steam_id"`
	Username          string     `gorm:"size:100;not null" json:"username"`
	DisplayName       string     `gorm:"size:100" json:"display_name"`
	ProfileURL        string     `gorm:"size:255" json:"profile_url"`
	AvatarURL         string     `gorm:"size:255" json:"avatar_url"`
	CountryCode       string     `gorm:"size:2" json:"country_code"`
	ProfileVisibility int        `gorm:"default:1" json:"profile_visibility"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	LastLogin         *time.Time `json:"last_login"`
	// Version is bumped on every profile update; concurrent writers lose
	// with a Conflict instead of silently overwriting each other.
	Version   int64     `gorm:"default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
