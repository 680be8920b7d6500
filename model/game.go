package model

import (
	"time"

	"gorm.io/datatypes"
)

// Game is one catalog title. Rows are created on first reference (library
// sync or explicit creation) and never auto-deleted.
//
// Prices are cents; a nil or zero PriceCurrent means free. Tags, Categories
// and Genres are open-ended key-presence maps (the value is ignored, only
// key presence matters).
type Game struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"game_id"`
	SteamAppID   int64             `gorm:"uniqueIndex;not null" json:"steam_app_id"`
	Name         string            `gorm:"size:255;not null" json:"name"`
	Description  string            `gorm:"type:text" json:"description"`
	Developer    string            `gorm:"size:255" json:"developer"`
	Publisher    string            `gorm:"size:255" json:"publisher"`
	ReleaseDate  *time.Time        `json:"release_date"`
	PriceInitial *int64            `json:"price_initial"`
	PriceCurrent *int64            `json:"price_current"`
	Tags         datatypes.JSONMap `json:"tags"`
	Categories   datatypes.JSONMap `json:"categories"`
	Genres       datatypes.JSONMap `json:"genres"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsFree reports whether the game currently costs nothing.
func (g *Game) IsFree() bool {
	return g.PriceCurrent == nil || *g.PriceCurrent == 0
}

// GenreNames returns the genre label keys.
func (g *Game) GenreNames() []string {
	names := make([]string, 0, len(g.Genres))
	for k := range g.Genres {
		names = append(names, k)
	}
	return names
}
