package library

import (
	"context"
	"testing"
	"time"

	"github.com/steamlytics/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatistics_EmptyLibrary(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, db, 42)

	s, err := svc.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, s.TotalGames)
	assert.Zero(t, s.PlayedPercentage, "no division by zero on an empty library")
	assert.Zero(t, s.AveragePlaytimeHours)
	assert.Nil(t, s.MostPlayed)
	assert.Empty(t, s.GenreDistribution)
	assert.Empty(t, s.RecentlyPlayed)
}

func TestStatistics(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, db, 42)

	g1 := seedGame(t, db, 220, "Half-Life 2", "Action", "Shooter")
	g2 := seedGame(t, db, 400, "Portal", "Action", "Puzzle")
	g3 := seedGame(t, db, 620, "Portal 2", "Puzzle")

	played := time.Now().Add(-time.Hour)
	for _, e := range []*model.LibraryEntry{
		{UserID: userID, GameID: g1, PlaytimeTotal: 300, LastPlayed: &played},
		{UserID: userID, GameID: g2, PlaytimeTotal: 60},
		{UserID: userID, GameID: g3},
	} {
		_, err := svc.AddGame(ctx, e)
		require.NoError(t, err)
	}

	s, err := svc.Statistics(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), s.TotalGames)
	assert.Equal(t, int64(2), s.PlayedGames)
	assert.Equal(t, int64(1), s.UnplayedGames)
	assert.InDelta(t, 66.67, s.PlayedPercentage, 0.01)
	assert.Equal(t, int64(360), s.TotalPlaytimeMinutes)
	assert.InDelta(t, 6.0, s.TotalPlaytimeHours, 0.001)
	assert.InDelta(t, 120.0, s.AveragePlaytimeMinutes, 0.001)
	assert.InDelta(t, 2.0, s.AveragePlaytimeHours, 0.001)

	require.NotNil(t, s.MostPlayed)
	assert.Equal(t, g1, s.MostPlayed.GameID)

	require.Len(t, s.GenreDistribution, 3)
	assert.Equal(t, GenreCount{Genre: "Action", Count: 2}, s.GenreDistribution[0])
	assert.Equal(t, GenreCount{Genre: "Puzzle", Count: 2}, s.GenreDistribution[1])
	assert.Equal(t, GenreCount{Genre: "Shooter", Count: 1}, s.GenreDistribution[2])

	require.Len(t, s.RecentlyPlayed, 1)
	assert.Equal(t, g1, s.RecentlyPlayed[0].GameID)
}

func TestStatistics_MostPlayedTieBreak(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, db, 42)

	g1 := seedGame(t, db, 220, "Half-Life 2")
	g2 := seedGame(t, db, 400, "Portal")

	for _, e := range []*model.LibraryEntry{
		{UserID: userID, GameID: g2, PlaytimeTotal: 100},
		{UserID: userID, GameID: g1, PlaytimeTotal: 100},
	} {
		_, err := svc.AddGame(ctx, e)
		require.NoError(t, err)
	}

	s, err := svc.Statistics(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, s.MostPlayed)
	assert.Equal(t, g1, s.MostPlayed.GameID, "ties go to the lower game id")
}

func TestStatistics_GenreDistributionCap(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, db, 42)

	genres := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	gameID := seedGame(t, db, 220, "Everything", genres...)
	_, err := svc.AddGame(ctx, &model.LibraryEntry{UserID: userID, GameID: gameID})
	require.NoError(t, err)

	s, err := svc.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, s.GenreDistribution, genreDistributionSize)
}

func TestStatistics_CacheEvictedOnMutation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, db, 42)
	gameID := seedGame(t, db, 220, "Half-Life 2")

	s, err := svc.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, s.TotalGames)

	_, err = svc.AddGame(ctx, &model.LibraryEntry{UserID: userID, GameID: gameID})
	require.NoError(t, err)

	s, err = svc.Statistics(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalGames)
}
