package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/directory"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
)

// UserHandler handles user account REST endpoints.
type UserHandler struct {
	users  *directory.Service
	logger *zap.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *directory.Service, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Create handles POST /api/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req struct {
		SteamID     int64  `json:"steam_id" binding:"required"`
		Username    string `json:"username" binding:"required"`
		DisplayName string `json:"display_name"`
		ProfileURL  string `json:"profile_url"`
		AvatarURL   string `json:"avatar_url"`
		CountryCode string `json:"country_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.users.Create(c.Request.Context(), &model.User{
		SteamID:     req.SteamID,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		ProfileURL:  req.ProfileURL,
		AvatarURL:   req.AvatarURL,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Get handles GET /api/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	u, err := h.users.FindByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// GetBySteamID handles GET /api/users/steam/:steam_id.
func (h *UserHandler) GetBySteamID(c *gin.Context) {
	steamID, err := strconv.ParseInt(c.Param("steam_id"), 10, 64)
	if err != nil || steamID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid steam_id"})
		return
	}
	u, err := h.users.FindBySteamID(c.Request.Context(), steamID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Search handles GET /api/users/search?q=&limit=.
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing q"})
		return
	}
	users, err := h.users.SearchActiveByName(c.Request.Context(), q, limitQuery(c, 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateProfile handles PUT /api/users/:id/profile.
// The expected version comes with the body so stale writers lose with 409.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Version int64                   `json:"version"`
		Profile directory.ProfileUpdate `json:"profile"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), id, req.Version, req.Profile)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Activate handles POST /api/users/:id/activate.
func (h *UserHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate handles POST /api/users/:id/deactivate.
func (h *UserHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var err error
	if active {
		err = h.users.Activate(c.Request.Context(), id)
	} else {
		err = h.users.Deactivate(c.Request.Context(), id)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active})
}

// RecordLogin handles POST /api/users/:id/login.
func (h *UserHandler) RecordLogin(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.users.RecordLogin(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login recorded"})
}
