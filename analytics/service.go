// Package analytics derives cross-user views from the friendship graph and
// the libraries hanging off it: recommendations, shared libraries and the
// composed dashboard.
package analytics

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/catalog"
	"github.com/steamlytics/server/directory"
	"github.com/steamlytics/server/library"
	"github.com/steamlytics/server/model"
	"github.com/steamlytics/server/social"
	"go.uber.org/zap"
)

const (
	maxRecommendations = 10
	maxScore           = 100.0
	fallbackScore      = 50.0

	friendWeight     = 10.0
	freeBonus        = 5.0
	popularBonus     = 5.0
	popularThreshold = 1000
)

// Recommendation is one suggested game with its score and provenance.
type Recommendation struct {
	Game        model.Game `json:"game"`
	Score       float64    `json:"score"`
	FriendCount int64      `json:"friend_count"`
	Reason      string     `json:"reason"`
}

// Service composes the lower-level services into the derived views.
type Service struct {
	users      *directory.Service
	games      *catalog.Service
	libraries  *library.Service
	friends    *social.Service
	cache      cache.Cache
	logger     *zap.Logger
	derivedTTL time.Duration
}

// NewService creates a new analytics Service.
func NewService(users *directory.Service, games *catalog.Service, libraries *library.Service, friends *social.Service, c cache.Cache, logger *zap.Logger, derivedTTL time.Duration) *Service {
	return &Service{
		users:      users,
		games:      games,
		libraries:  libraries,
		friends:    friends,
		cache:      c,
		logger:     logger,
		derivedTTL: derivedTTL,
	}
}

// Recommendations suggests games the user's friends own but the user does
// not. Each candidate is scored by how many friends own it, with small
// bonuses for free and widely-owned games, capped at 100. A user with no
// friends falls back to globally popular games at a flat score. At most ten
// suggestions are returned.
func (svc *Service) Recommendations(ctx context.Context, userID int64) ([]Recommendation, error) {
	if _, err := svc.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	key := cache.RecsKey(userID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var recs []Recommendation
		if json.Unmarshal([]byte(raw), &recs) == nil {
			return recs, nil
		}
	}

	friendIDs, err := svc.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	var recs []Recommendation
	if len(friendIDs) == 0 {
		recs, err = svc.recommendPopular(ctx, userID)
	} else {
		recs, err = svc.recommendFromFriends(ctx, userID, friendIDs)
	}
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(recs); err == nil {
		if err := svc.cache.Set(ctx, key, string(raw), svc.derivedTTL); err != nil {
			svc.logger.Warn("recommendation cache write failed", zap.Error(err))
		}
	}
	return recs, nil
}

func (svc *Service) recommendFromFriends(ctx context.Context, userID int64, friendIDs []int64) ([]Recommendation, error) {
	owned, err := svc.ownedSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Count, per candidate game, how many friends own it.
	friendOwners := make(map[int64]int64)
	for _, friendID := range friendIDs {
		gameIDs, err := svc.libraries.GameIDs(ctx, friendID)
		if err != nil {
			return nil, err
		}
		for _, gameID := range gameIDs {
			if _, has := owned[gameID]; has {
				continue
			}
			friendOwners[gameID]++
		}
	}
	if len(friendOwners) == 0 {
		return []Recommendation{}, nil
	}

	recs := make([]Recommendation, 0, len(friendOwners))
	for gameID, count := range friendOwners {
		g, err := svc.games.FindByID(ctx, gameID)
		if err != nil {
			return nil, err
		}
		owners, err := svc.games.OwnerCount(ctx, gameID)
		if err != nil {
			return nil, err
		}

		score := float64(count) * friendWeight
		if g.IsFree() {
			score += freeBonus
		}
		if owners > popularThreshold {
			score += popularBonus
		}
		if score > maxScore {
			score = maxScore
		}
		recs = append(recs, Recommendation{
			Game:        *g,
			Score:       score,
			FriendCount: count,
			Reason:      "owned by friends",
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].FriendCount != recs[j].FriendCount {
			return recs[i].FriendCount > recs[j].FriendCount
		}
		return recs[i].Game.ID < recs[j].Game.ID
	})
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs, nil
}

func (svc *Service) recommendPopular(ctx context.Context, userID int64) ([]Recommendation, error) {
	owned, err := svc.ownedSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	popular, err := svc.games.MostPopular(ctx, maxRecommendations*2)
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, maxRecommendations)
	for _, p := range popular {
		if _, has := owned[p.Game.ID]; has {
			continue
		}
		recs = append(recs, Recommendation{
			Game:   p.Game,
			Score:  fallbackScore,
			Reason: "popular game",
		})
		if len(recs) == maxRecommendations {
			break
		}
	}
	return recs, nil
}

func (svc *Service) ownedSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	ids, err := svc.libraries.GameIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	owned := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	return owned, nil
}

// CommonGame is one game owned by both users with each side's playtime.
// UserPlaytime belongs to the first user passed to CommonGames.
type CommonGame struct {
	Game           model.Game `json:"game"`
	UserPlaytime   int64      `json:"user_playtime"`
	FriendPlaytime int64      `json:"friend_playtime"`
	TotalPlaytime  int64      `json:"total_playtime"`
}

// CommonGames returns the games both users own, ordered by combined
// playtime, highest first. The result is cached under the normalized pair
// key in lower-id-first orientation, so either argument order hits the same
// entry; the per-side playtimes are swapped back to the caller's order.
func (svc *Service) CommonGames(ctx context.Context, userA, userB int64) ([]CommonGame, error) {
	for _, id := range []int64{userA, userB} {
		if _, err := svc.users.FindByID(ctx, id); err != nil {
			return nil, err
		}
	}

	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	key := cache.CommonGamesKey(userA, userB)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var common []CommonGame
		if json.Unmarshal([]byte(raw), &common) == nil {
			return orientCommon(common, userA != low), nil
		}
	}

	lowEntries, err := svc.libraries.List(ctx, low)
	if err != nil {
		return nil, err
	}
	highEntries, err := svc.libraries.List(ctx, high)
	if err != nil {
		return nil, err
	}

	highPlaytime := make(map[int64]int64, len(highEntries))
	for _, e := range highEntries {
		highPlaytime[e.GameID] = e.PlaytimeTotal
	}

	common := make([]CommonGame, 0)
	for _, e := range lowEntries {
		hp, ok := highPlaytime[e.GameID]
		if !ok || e.Game == nil {
			continue
		}
		common = append(common, CommonGame{
			Game:           *e.Game,
			UserPlaytime:   e.PlaytimeTotal,
			FriendPlaytime: hp,
			TotalPlaytime:  e.PlaytimeTotal + hp,
		})
	}
	sort.SliceStable(common, func(i, j int) bool {
		if common[i].TotalPlaytime != common[j].TotalPlaytime {
			return common[i].TotalPlaytime > common[j].TotalPlaytime
		}
		return common[i].Game.ID < common[j].Game.ID
	})

	if raw, err := json.Marshal(common); err == nil {
		if err := svc.cache.Set(ctx, key, string(raw), svc.derivedTTL); err != nil {
			svc.logger.Warn("common games cache write failed", zap.Error(err))
		}
	}
	return orientCommon(common, userA != low), nil
}

func orientCommon(common []CommonGame, swap bool) []CommonGame {
	if !swap {
		return common
	}
	out := make([]CommonGame, len(common))
	for i, cg := range common {
		cg.UserPlaytime, cg.FriendPlaytime = cg.FriendPlaytime, cg.UserPlaytime
		out[i] = cg
	}
	return out
}
