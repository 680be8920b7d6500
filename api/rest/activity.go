package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/activity"
	"go.uber.org/zap"
)

// ActivityHandler handles the activity trail REST endpoints.
type ActivityHandler struct {
	activity *activity.Service
	logger   *zap.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(svc *activity.Service, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{activity: svc, logger: logger}
}

// Recent handles GET /api/users/:id/activity?limit=.
func (h *ActivityHandler) Recent(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.activity.Recent(c.Request.Context(), userID, limitQuery(c, 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": rows})
}
