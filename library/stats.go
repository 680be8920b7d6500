package library

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
)

// GenreCount is one slice of the genre distribution.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int64  `json:"count"`
}

// Statistics is the aggregated view over one user's library.
type Statistics struct {
	UserID                 int64                `json:"user_id"`
	TotalGames             int64                `json:"total_games"`
	PlayedGames            int64                `json:"played_games"`
	UnplayedGames          int64                `json:"unplayed_games"`
	PlayedPercentage       float64              `json:"played_percentage"`
	TotalPlaytimeMinutes   int64                `json:"total_playtime_minutes"`
	TotalPlaytimeHours     float64              `json:"total_playtime_hours"`
	AveragePlaytimeMinutes float64              `json:"average_playtime_minutes"`
	AveragePlaytimeHours   float64              `json:"average_playtime_hours"`
	MostPlayed             *model.LibraryEntry  `json:"most_played,omitempty"`
	GenreDistribution      []GenreCount         `json:"genre_distribution"`
	RecentlyPlayed         []model.LibraryEntry `json:"recently_played"`
	GeneratedAt            time.Time            `json:"generated_at"`
}

const (
	genreDistributionSize = 10
	recentlyPlayedSize    = 5
)

// Statistics aggregates the user's library into the stats view. The result
// is cached; any library mutation evicts it.
func (svc *Service) Statistics(ctx context.Context, userID int64) (*Statistics, error) {
	key := cache.StatsKey(userID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var s Statistics
		if json.Unmarshal([]byte(raw), &s) == nil {
			return &s, nil
		}
	}

	entries, err := svc.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := &Statistics{
		UserID:            userID,
		TotalGames:        int64(len(entries)),
		GenreDistribution: []GenreCount{},
		RecentlyPlayed:    []model.LibraryEntry{},
		GeneratedAt:       time.Now(),
	}
	for i := range entries {
		e := &entries[i]
		s.TotalPlaytimeMinutes += e.PlaytimeTotal
		if e.Played() {
			s.PlayedGames++
			if s.MostPlayed == nil ||
				e.PlaytimeTotal > s.MostPlayed.PlaytimeTotal ||
				(e.PlaytimeTotal == s.MostPlayed.PlaytimeTotal && e.GameID < s.MostPlayed.GameID) {
				s.MostPlayed = e
			}
		}
	}
	s.UnplayedGames = s.TotalGames - s.PlayedGames
	s.TotalPlaytimeHours = float64(s.TotalPlaytimeMinutes) / 60.0
	if s.TotalGames > 0 {
		s.PlayedPercentage = float64(s.PlayedGames) * 100.0 / float64(s.TotalGames)
		s.AveragePlaytimeMinutes = float64(s.TotalPlaytimeMinutes) / float64(s.TotalGames)
		s.AveragePlaytimeHours = s.TotalPlaytimeHours / float64(s.TotalGames)
	}
	s.GenreDistribution = genreDistribution(entries)

	recent, err := svc.RecentlyPlayed(ctx, userID, recentlyPlayedSize)
	if err != nil {
		return nil, err
	}
	s.RecentlyPlayed = recent

	if raw, err := json.Marshal(s); err == nil {
		if err := svc.cache.Set(ctx, key, string(raw), svc.derivedTTL); err != nil {
			svc.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return s, nil
}

// genreDistribution counts genre labels across the library and keeps the top
// slices, largest first. Equal counts keep their first-seen order so the
// output is stable across runs.
func genreDistribution(entries []model.LibraryEntry) []GenreCount {
	counts := make(map[string]int64)
	order := make([]string, 0)
	for i := range entries {
		if entries[i].Game == nil {
			continue
		}
		names := entries[i].Game.GenreNames()
		sort.Strings(names)
		for _, name := range names {
			if _, seen := counts[name]; !seen {
				order = append(order, name)
			}
			counts[name]++
		}
	}

	dist := make([]GenreCount, 0, len(order))
	for _, name := range order {
		dist = append(dist, GenreCount{Genre: name, Count: counts[name]})
	}
	sort.SliceStable(dist, func(i, j int) bool {
		return dist[i].Count > dist[j].Count
	})
	if len(dist) > genreDistributionSize {
		dist = dist[:genreDistributionSize]
	}
	return dist
}
