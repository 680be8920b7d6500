package model

import "time"

// LibraryEntry links one user to one game they own, with playtime counters
// in minutes. The composite unique index closes the find-or-create race on
// concurrent syncs: duplicate inserts become upserts.
type LibraryEntry struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64      `gorm:"uniqueIndex:idx_user_game;not null" json:"user_id"`
	GameID           int64      `gorm:"uniqueIndex:idx_user_game;not null" json:"game_id"`
	PlaytimeTotal    int64      `gorm:"default:0;check:playtime_total >= 0" json:"playtime_total"`
	PlaytimeTwoWeeks int64      `gorm:"default:0;check:playtime_two_weeks >= 0" json:"playtime_two_weeks"`
	PurchasedAt      time.Time  `json:"purchased_at"`
	LastPlayed       *time.Time `json:"last_played"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Game *Game `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"game,omitempty"`
}

// Played reports whether the entry has any recorded playtime.
func (e *LibraryEntry) Played() bool {
	return e.PlaytimeTotal > 0
}

// PlaytimeHours converts the total playtime to hours.
func (e *LibraryEntry) PlaytimeHours() float64 {
	return float64(e.PlaytimeTotal) / 60.0
}
