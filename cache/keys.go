package cache

import "fmt"

// Key builders. Every cached projection has exactly one key shape so that
// eviction can always target the affected entries by id.
const (
	// FriendsLeaderboard is the ZSet of user ids scored by accepted-friend
	// count, rebuilt periodically and patched on friendship mutations.
	FriendsLeaderboard = "leaderboard:friends"
)

func UserKey(id int64) string           { return fmt.Sprintf("user:%d", id) }
func UserSteamKey(steamID int64) string { return fmt.Sprintf("user:steam:%d", steamID) }
func GameKey(id int64) string           { return fmt.Sprintf("game:%d", id) }
func GameAppKey(appID int64) string     { return fmt.Sprintf("game:app:%d", appID) }
func FriendsKey(userID int64) string    { return fmt.Sprintf("friends:%d", userID) }
func LibraryKey(userID int64) string    { return fmt.Sprintf("library:%d", userID) }
func StatsKey(userID int64) string      { return fmt.Sprintf("stats:%d", userID) }
func RecsKey(userID int64) string       { return fmt.Sprintf("recs:%d", userID) }
func DashboardKey(userID int64) string  { return fmt.Sprintf("dashboard:%d", userID) }

// CommonGamesKey normalizes the pair so both orderings hit the same entry.
func CommonGamesKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("common:%d:%d", a, b)
}
