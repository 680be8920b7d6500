package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/analytics"
	"github.com/steamlytics/server/api/rest"
	"github.com/steamlytics/server/catalog"
	"github.com/steamlytics/server/directory"
	"github.com/steamlytics/server/library"
	"github.com/steamlytics/server/scheduler"
	"github.com/steamlytics/server/social"
	"github.com/steamlytics/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// harness wires the full REST surface against an in-memory DB and cache.
type harness struct {
	router *gin.Engine
	db     *gorm.DB
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	ttl := time.Minute

	users := directory.NewService(db, c, logger, ttl)
	games := catalog.NewService(db, c, logger, ttl)
	libraries := library.NewService(db, c, logger, ttl)
	friends := social.NewService(db, c, logger, ttl)
	analyticsSvc := analytics.NewService(users, games, libraries, friends, c, logger, ttl)

	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	userH := rest.NewUserHandler(users, logger)
	gameH := rest.NewGameHandler(games, logger)
	libH := rest.NewLibraryHandler(libraries, logger)
	friendH := rest.NewFriendshipHandler(friends, logger)
	analyticsH := rest.NewAnalyticsHandler(analyticsSvc, logger)
	adminH := rest.NewAdminHandler(db, c, friends, sched, logger, 30)

	r := gin.New()
	r.GET("/health", adminH.Health)

	api := r.Group("/api")
	{
		usersG := api.Group("/users")
		usersG.POST("", userH.Create)
		usersG.GET("/search", userH.Search)
		usersG.GET("/steam/:steam_id", userH.GetBySteamID)
		usersG.GET("/:id", userH.Get)
		usersG.PUT("/:id/profile", userH.UpdateProfile)
		usersG.POST("/:id/activate", userH.Activate)
		usersG.POST("/:id/deactivate", userH.Deactivate)
		usersG.POST("/:id/login", userH.RecordLogin)

		usersG.POST("/:id/library", libH.Add)
		usersG.POST("/:id/library/sync", libH.Sync)
		usersG.GET("/:id/library", libH.List)
		usersG.GET("/:id/library/:game_id", libH.Get)
		usersG.PUT("/:id/library/:game_id/playtime", libH.UpdatePlaytime)
		usersG.DELETE("/:id/library/:game_id", libH.Remove)
		usersG.GET("/:id/stats", libH.Stats)

		usersG.GET("/:id/friends", friendH.ListFriends)
		usersG.GET("/:id/friends/pending", friendH.PendingReceived)
		usersG.GET("/:id/friends/sent", friendH.PendingSent)
		usersG.GET("/:id/friends/stats", friendH.Stats)
		usersG.GET("/:id/friends/mutual/:other_id", friendH.Mutual)
		usersG.DELETE("/:id/friends/:other_id", friendH.Remove)

		usersG.GET("/:id/recommendations", analyticsH.Recommendations)
		usersG.GET("/:id/dashboard", analyticsH.Dashboard)
		usersG.GET("/:id/common/:other_id", analyticsH.CommonGames)
		usersG.GET("/:id/compare/:other_id", analyticsH.Compare)

		gamesG := api.Group("/games")
		gamesG.POST("", gameH.Create)
		gamesG.GET("/search", gameH.Search)
		gamesG.GET("/free", gameH.Free)
		gamesG.GET("/recent", gameH.Recent)
		gamesG.GET("/popular", gameH.Popular)
		gamesG.GET("/app/:app_id", gameH.GetByAppID)
		gamesG.GET("/:id", gameH.Get)
		gamesG.GET("/:id/similar", gameH.Similar)
		gamesG.PUT("/:id/info", gameH.UpdateInfo)
		gamesG.PUT("/:id/prices", gameH.UpdatePrices)
		gamesG.PUT("/:id/labels", gameH.UpdateLabels)

		friendsG := api.Group("/friendships")
		friendsG.POST("", friendH.SendRequest)
		friendsG.GET("/leaderboard", friendH.Leaderboard)
		friendsG.POST("/block", friendH.Block)
		friendsG.POST("/:id/accept", friendH.Accept)
		friendsG.POST("/:id/decline", friendH.Decline)

		adminG := api.Group("/admin")
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/cleanup", adminH.RunCleanup)
		adminG.POST("/leaderboard/refresh", adminH.RefreshLeaderboard)
	}

	return &harness{router: r, db: db}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	return h.do(t, http.MethodGet, path, nil)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// createUser registers a user through the API and returns its id.
func (h *harness) createUser(t *testing.T, steamID int64, username string) int64 {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/users", map[string]interface{}{
		"steam_id": steamID,
		"username": username,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["user_id"].(float64))
}

// createGame registers a game through the API and returns its id.
func (h *harness) createGame(t *testing.T, appID int64, name string) int64 {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/games", map[string]interface{}{
		"steam_app_id": appID,
		"name":         name,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decode(t, w)["game_id"].(float64))
}
