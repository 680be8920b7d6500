package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/model"
	"github.com/steamlytics/server/social"
	"go.uber.org/zap"
)

// FriendshipHandler handles friendship REST endpoints.
type FriendshipHandler struct {
	friends *social.Service
	logger  *zap.Logger
}

// NewFriendshipHandler creates a FriendshipHandler.
func NewFriendshipHandler(friends *social.Service, logger *zap.Logger) *FriendshipHandler {
	return &FriendshipHandler{friends: friends, logger: logger}
}

// SendRequest handles POST /api/friendships.
func (h *FriendshipHandler) SendRequest(c *gin.Context) {
	var req struct {
		RequesterID int64 `json:"requester_id" binding:"required"`
		AddresseeID int64 `json:"addressee_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.friends.SendRequest(c.Request.Context(), req.RequesterID, req.AddresseeID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// Accept handles POST /api/friendships/:id/accept.
func (h *FriendshipHandler) Accept(c *gin.Context) {
	h.answer(c, true)
}

// Decline handles POST /api/friendships/:id/decline.
func (h *FriendshipHandler) Decline(c *gin.Context) {
	h.answer(c, false)
}

func (h *FriendshipHandler) answer(c *gin.Context, accept bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		f   *model.Friendship
		err error
	)
	if accept {
		f, err = h.friends.Accept(c.Request.Context(), id, req.UserID)
	} else {
		f, err = h.friends.Decline(c.Request.Context(), id, req.UserID)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// Block handles POST /api/friendships/block.
func (h *FriendshipHandler) Block(c *gin.Context) {
	var req struct {
		BlockerID int64 `json:"blocker_id" binding:"required"`
		BlockedID int64 `json:"blocked_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := h.friends.Block(c.Request.Context(), req.BlockerID, req.BlockedID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// Remove handles DELETE /api/users/:id/friends/:other_id.
func (h *FriendshipHandler) Remove(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	otherID, ok := idParam(c, "other_id")
	if !ok {
		return
	}
	if err := h.friends.Remove(c.Request.Context(), userID, otherID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

// ListFriends handles GET /api/users/:id/friends.
func (h *FriendshipHandler) ListFriends(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	ids, err := h.friends.FriendIDs(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friend_ids": ids})
}

// PendingReceived handles GET /api/users/:id/friends/pending.
func (h *FriendshipHandler) PendingReceived(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	edges, err := h.friends.PendingReceived(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": edges})
}

// PendingSent handles GET /api/users/:id/friends/sent.
func (h *FriendshipHandler) PendingSent(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	edges, err := h.friends.PendingSent(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": edges})
}

// Stats handles GET /api/users/:id/friends/stats.
func (h *FriendshipHandler) Stats(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.friends.Stats(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Mutual handles GET /api/users/:id/friends/mutual/:other_id.
func (h *FriendshipHandler) Mutual(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	otherID, ok := idParam(c, "other_id")
	if !ok {
		return
	}
	ids, err := h.friends.MutualFriendIDs(c.Request.Context(), userID, otherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friend_ids": ids})
}

// Leaderboard handles GET /api/friendships/leaderboard?limit=.
func (h *FriendshipHandler) Leaderboard(c *gin.Context) {
	rows, err := h.friends.Leaderboard(c.Request.Context(), limitQuery(c, 20))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
}
