package analytics

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/library"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
)

const (
	dashboardTopGames    = 5
	dashboardRecent      = 5
	dashboardRecs        = 3
	dashboardFriends     = 5
	dashboardFriendGames = 3
)

// FriendActivity is one friend with their latest plays.
type FriendActivity struct {
	User           model.User           `json:"user"`
	RecentlyPlayed []model.LibraryEntry `json:"recently_played"`
}

// Dashboard is the composed landing view for one user.
type Dashboard struct {
	User            model.User           `json:"user"`
	Statistics      *library.Statistics  `json:"statistics"`
	TopGames        []model.LibraryEntry `json:"top_games"`
	RecentlyPlayed  []model.LibraryEntry `json:"recently_played"`
	Recommendations []Recommendation     `json:"recommendations"`
	FriendActivity  []FriendActivity     `json:"friend_activity"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// Comparison puts two users' libraries side by side.
type Comparison struct {
	UserA       model.User          `json:"user_a"`
	UserB       model.User          `json:"user_b"`
	StatsA      *library.Statistics `json:"stats_a"`
	StatsB      *library.Statistics `json:"stats_b"`
	CommonGames []CommonGame        `json:"common_games"`
	AreFriends  bool                `json:"are_friends"`
}

// Dashboard assembles the user's landing view: library statistics, their
// most played and latest games, a short recommendation list and what their
// friends have been playing. The whole view is cached as one unit.
func (svc *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	u, err := svc.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := cache.DashboardKey(userID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var d Dashboard
		if json.Unmarshal([]byte(raw), &d) == nil {
			return &d, nil
		}
	}

	stats, err := svc.libraries.Statistics(ctx, userID)
	if err != nil {
		return nil, err
	}
	top, err := svc.libraries.ListByPlaytime(ctx, userID, dashboardTopGames)
	if err != nil {
		return nil, err
	}
	recent, err := svc.libraries.RecentlyPlayed(ctx, userID, dashboardRecent)
	if err != nil {
		return nil, err
	}
	recs, err := svc.Recommendations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(recs) > dashboardRecs {
		recs = recs[:dashboardRecs]
	}
	activity, err := svc.friendActivity(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		User:            *u,
		Statistics:      stats,
		TopGames:        top,
		RecentlyPlayed:  recent,
		Recommendations: recs,
		FriendActivity:  activity,
		GeneratedAt:     time.Now(),
	}
	if raw, err := json.Marshal(d); err == nil {
		if err := svc.cache.Set(ctx, key, string(raw), svc.derivedTTL); err != nil {
			svc.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return d, nil
}

// friendActivity samples a handful of friends and their latest plays.
// Friends are visited in id order so the view is stable between refreshes.
func (svc *Service) friendActivity(ctx context.Context, userID int64) ([]FriendActivity, error) {
	friendIDs, err := svc.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	slices.Sort(friendIDs)
	if len(friendIDs) > dashboardFriends {
		friendIDs = friendIDs[:dashboardFriends]
	}

	activity := make([]FriendActivity, 0, len(friendIDs))
	for _, friendID := range friendIDs {
		friend, err := svc.users.FindByID(ctx, friendID)
		if err != nil {
			return nil, err
		}
		recent, err := svc.libraries.RecentlyPlayed(ctx, friendID, dashboardFriendGames)
		if err != nil {
			return nil, err
		}
		activity = append(activity, FriendActivity{User: *friend, RecentlyPlayed: recent})
	}
	return activity, nil
}

// Compare puts two users side by side: both stat blocks, the games they
// share and whether they are friends.
func (svc *Service) Compare(ctx context.Context, userA, userB int64) (*Comparison, error) {
	a, err := svc.users.FindByID(ctx, userA)
	if err != nil {
		return nil, err
	}
	b, err := svc.users.FindByID(ctx, userB)
	if err != nil {
		return nil, err
	}

	statsA, err := svc.libraries.Statistics(ctx, userA)
	if err != nil {
		return nil, err
	}
	statsB, err := svc.libraries.Statistics(ctx, userB)
	if err != nil {
		return nil, err
	}
	common, err := svc.CommonGames(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	areFriends, err := svc.friends.AreFriends(ctx, userA, userB)
	if err != nil {
		return nil, err
	}

	return &Comparison{
		UserA:       *a,
		UserB:       *b,
		StatsA:      statsA,
		StatsB:      statsB,
		CommonGames: common,
		AreFriends:  areFriends,
	}, nil
}
