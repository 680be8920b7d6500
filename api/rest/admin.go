package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/scheduler"
	"github.com/steamlytics/server/social"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles health and maintenance REST endpoints.
type AdminHandler struct {
	db      *gorm.DB
	cache   cache.Cache
	friends *social.Service
	sched   *scheduler.Scheduler
	logger  *zap.Logger

	cleanupMaxAgeDays int
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	c cache.Cache,
	friends *social.Service,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
	cleanupMaxAgeDays int,
) *AdminHandler {
	return &AdminHandler{
		db:                db,
		cache:             c,
		friends:           friends,
		sched:             sched,
		logger:            logger,
		cleanupMaxAgeDays: cleanupMaxAgeDays,
	}
}

// Health reports whether the DB and cache respond.
// GET /health
func (h *AdminHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	dbStatus := "ok"
	cacheStatus := "ok"

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "down"
		status = http.StatusServiceUnavailable
	}

	if err := h.cache.Set(ctx, "health:probe", "1", time.Minute); err != nil {
		cacheStatus = "down"
		status = http.StatusServiceUnavailable
	} else if _, err := h.cache.Get(ctx, "health:probe"); err != nil {
		cacheStatus = "down"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"database": dbStatus, "cache": cacheStatus})
}

// Metrics returns the registered background tasks.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scheduler_tasks": h.sched.Names(),
	})
}

// RunCleanup triggers the stale-edge purge outside its schedule.
// POST /api/admin/cleanup
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	deleted, err := h.friends.CleanupOldRejected(c.Request.Context(), h.cleanupMaxAgeDays)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// RefreshLeaderboard rebuilds the friends leaderboard outside its schedule.
// POST /api/admin/leaderboard/refresh
func (h *AdminHandler) RefreshLeaderboard(c *gin.Context) {
	n, err := h.friends.RefreshLeaderboard(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}
