package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/library"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
)

// LibraryHandler handles per-user library REST endpoints.
type LibraryHandler struct {
	libraries *library.Service
	logger    *zap.Logger
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(libraries *library.Service, logger *zap.Logger) *LibraryHandler {
	return &LibraryHandler{libraries: libraries, logger: logger}
}

// Add handles POST /api/users/:id/library.
func (h *LibraryHandler) Add(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		GameID           int64      `json:"game_id" binding:"required"`
		PlaytimeTotal    int64      `json:"playtime_total"`
		PlaytimeTwoWeeks int64      `json:"playtime_two_weeks"`
		PurchasedAt      *time.Time `json:"purchased_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e := &model.LibraryEntry{
		UserID:           userID,
		GameID:           req.GameID,
		PlaytimeTotal:    req.PlaytimeTotal,
		PlaytimeTwoWeeks: req.PlaytimeTwoWeeks,
	}
	if req.PurchasedAt != nil {
		e.PurchasedAt = *req.PurchasedAt
	}
	created, err := h.libraries.AddGame(c.Request.Context(), e)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Sync handles POST /api/users/:id/library/sync.
func (h *LibraryHandler) Sync(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Entries []library.SyncEntry `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.libraries.Sync(c.Request.Context(), userID, req.Entries)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": n})
}

// List handles GET /api/users/:id/library?sort=playtime|recent.
func (h *LibraryHandler) List(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		entries []model.LibraryEntry
		err     error
	)
	switch c.Query("sort") {
	case "playtime":
		entries, err = h.libraries.ListByPlaytime(ctx, userID, limitQuery(c, 0))
	case "recent":
		entries, err = h.libraries.RecentlyPlayed(ctx, userID, limitQuery(c, 0))
	default:
		entries, err = h.libraries.List(ctx, userID)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"library": entries})
}

// Get handles GET /api/users/:id/library/:game_id.
func (h *LibraryHandler) Get(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	gameID, ok := idParam(c, "game_id")
	if !ok {
		return
	}
	e, err := h.libraries.Get(c.Request.Context(), userID, gameID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// UpdatePlaytime handles PUT /api/users/:id/library/:game_id/playtime.
func (h *LibraryHandler) UpdatePlaytime(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	gameID, ok := idParam(c, "game_id")
	if !ok {
		return
	}
	var req struct {
		PlaytimeTotal    int64 `json:"playtime_total"`
		PlaytimeTwoWeeks int64 `json:"playtime_two_weeks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := h.libraries.UpdatePlaytime(c.Request.Context(), userID, gameID, req.PlaytimeTotal, req.PlaytimeTwoWeeks)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// Remove handles DELETE /api/users/:id/library/:game_id.
func (h *LibraryHandler) Remove(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	gameID, ok := idParam(c, "game_id")
	if !ok {
		return
	}
	if err := h.libraries.Remove(c.Request.Context(), userID, gameID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

// Stats handles GET /api/users/:id/stats.
func (h *LibraryHandler) Stats(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.libraries.Statistics(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
