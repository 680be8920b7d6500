package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/catalog"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// GameHandler handles game catalog REST endpoints.
type GameHandler struct {
	games  *catalog.Service
	logger *zap.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(games *catalog.Service, logger *zap.Logger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

// Create handles POST /api/games.
func (h *GameHandler) Create(c *gin.Context) {
	var req struct {
		SteamAppID   int64      `json:"steam_app_id" binding:"required"`
		Name         string     `json:"name" binding:"required"`
		Description  string     `json:"description"`
		Developer    string     `json:"developer"`
		Publisher    string     `json:"publisher"`
		ReleaseDate  *time.Time `json:"release_date"`
		PriceInitial *int64     `json:"price_initial"`
		PriceCurrent *int64     `json:"price_current"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.games.Save(c.Request.Context(), &model.Game{
		SteamAppID:   req.SteamAppID,
		Name:         req.Name,
		Description:  req.Description,
		Developer:    req.Developer,
		Publisher:    req.Publisher,
		ReleaseDate:  req.ReleaseDate,
		PriceInitial: req.PriceInitial,
		PriceCurrent: req.PriceCurrent,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// Get handles GET /api/games/:id.
func (h *GameHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	g, err := h.games.FindByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// GetByAppID handles GET /api/games/app/:app_id.
func (h *GameHandler) GetByAppID(c *gin.Context) {
	appID, err := strconv.ParseInt(c.Param("app_id"), 10, 64)
	if err != nil || appID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid app_id"})
		return
	}
	g, err := h.games.FindByAppID(c.Request.Context(), appID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// Search handles GET /api/games/search?q=&developer=&publisher=&limit=.
// Exactly one filter is applied; q wins when several are present.
func (h *GameHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	limit := limitQuery(c, 20)

	var (
		games []model.Game
		err   error
	)
	switch {
	case c.Query("q") != "":
		games, err = h.games.SearchByName(ctx, c.Query("q"), limit)
	case c.Query("developer") != "":
		games, err = h.games.SearchByDeveloper(ctx, c.Query("developer"), limit)
	case c.Query("publisher") != "":
		games, err = h.games.SearchByPublisher(ctx, c.Query("publisher"), limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing search filter"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// Free handles GET /api/games/free.
func (h *GameHandler) Free(c *gin.Context) {
	games, err := h.games.FreeGames(c.Request.Context(), limitQuery(c, 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// Recent handles GET /api/games/recent.
func (h *GameHandler) Recent(c *gin.Context) {
	games, err := h.games.RecentlyAdded(c.Request.Context(), limitQuery(c, 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

// Popular handles GET /api/games/popular?limit=.
func (h *GameHandler) Popular(c *gin.Context) {
	popular, err := h.games.MostPopular(c.Request.Context(), limitQuery(c, 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": popular})
}

// Similar handles GET /api/games/:id/similar?limit=.
func (h *GameHandler) Similar(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	similar, err := h.games.SimilarByCommonPlayers(c.Request.Context(), id, limitQuery(c, 10))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": similar})
}

// UpdateInfo handles PUT /api/games/:id/info.
func (h *GameHandler) UpdateInfo(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name        string     `json:"name" binding:"required"`
		Description string     `json:"description"`
		Developer   string     `json:"developer"`
		Publisher   string     `json:"publisher"`
		ReleaseDate *time.Time `json:"release_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.games.UpdateInfo(c.Request.Context(), id, req.Name, req.Description, req.Developer, req.Publisher, req.ReleaseDate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// UpdatePrices handles PUT /api/games/:id/prices.
func (h *GameHandler) UpdatePrices(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		PriceInitial *int64 `json:"price_initial"`
		PriceCurrent *int64 `json:"price_current"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.games.UpdatePrices(c.Request.Context(), id, req.PriceInitial, req.PriceCurrent)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// UpdateLabels handles PUT /api/games/:id/labels.
func (h *GameHandler) UpdateLabels(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Tags       datatypes.JSONMap `json:"tags"`
		Categories datatypes.JSONMap `json:"categories"`
		Genres     datatypes.JSONMap `json:"genres"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.games.UpdateLabels(c.Request.Context(), id, req.Tags, req.Categories, req.Genres)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}
