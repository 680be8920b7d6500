package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/activity"
	"github.com/steamlytics/server/analytics"
	apirest "github.com/steamlytics/server/api/rest"
	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/catalog"
	"github.com/steamlytics/server/config"
	dbadapter "github.com/steamlytics/server/db"
	"github.com/steamlytics/server/directory"
	"github.com/steamlytics/server/library"
	mw "github.com/steamlytics/server/middleware"
	"github.com/steamlytics/server/model"
	"github.com/steamlytics/server/scheduler"
	"github.com/steamlytics/server/social"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Activity log ----
	activitySvc := activity.New(db, logger)
	defer activitySvc.Stop(nil)

	// ---- Services ----
	users := directory.NewService(db, c, logger, cfg.Cache.EntityTTL)
	games := catalog.NewService(db, c, logger, cfg.Cache.EntityTTL)
	libraries := library.NewService(db, c, logger, cfg.Cache.DerivedTTL)
	friends := social.NewService(db, c, logger, cfg.Cache.DerivedTTL)
	analyticsSvc := analytics.NewService(users, games, libraries, friends, c, logger, cfg.Cache.DerivedTTL)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.RegisterMaintenance(friends, c, scheduler.MaintenanceConfig{
		CleanupMaxAgeDays:   cfg.Analytics.CleanupMaxAgeDays,
		CleanupInterval:     cfg.Analytics.CleanupInterval,
		LeaderboardInterval: cfg.Analytics.LeaderboardInterval,
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.RequestLogger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	r.Use(mw.ActivityLog(activitySvc))

	// ---- Handlers ----
	userH := apirest.NewUserHandler(users, logger)
	gameH := apirest.NewGameHandler(games, logger)
	libH := apirest.NewLibraryHandler(libraries, logger)
	friendH := apirest.NewFriendshipHandler(friends, logger)
	analyticsH := apirest.NewAnalyticsHandler(analyticsSvc, logger)
	activityH := apirest.NewActivityHandler(activitySvc, logger)
	adminH := apirest.NewAdminHandler(db, c, friends, sched, logger, cfg.Analytics.CleanupMaxAgeDays)

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

		usersG.GET("/:id/activity", activityH.Recent)

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

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("HTTP server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
