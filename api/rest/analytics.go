package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/analytics"
	"go.uber.org/zap"
)

// AnalyticsHandler handles the derived-view REST endpoints.
type AnalyticsHandler struct {
	analytics *analytics.Service
	logger    *zap.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(svc *analytics.Service, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc, logger: logger}
}

// Recommendations handles GET /api/users/:id/recommendations.
func (h *AnalyticsHandler) Recommendations(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	recs, err := h.analytics.Recommendations(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// Dashboard handles GET /api/users/:id/dashboard.
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	d, err := h.analytics.Dashboard(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// CommonGames handles GET /api/users/:id/common/:other_id.
func (h *AnalyticsHandler) CommonGames(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	otherID, ok := idParam(c, "other_id")
	if !ok {
		return
	}
	games, err := h.analytics.CommonGames(c.Request.Context(), userID, otherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// Compare handles GET /api/users/:id/compare/:other_id.
func (h *AnalyticsHandler) Compare(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	otherID, ok := idParam(c, "other_id")
	if !ok {
		return
	}
	cmp, err := h.analytics.Compare(c.Request.Context(), userID, otherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}
