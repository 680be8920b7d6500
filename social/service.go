// Package social implements the friendship state machine: the lifecycle of
// a relationship edge between two users (pending → accepted/declined/blocked)
// and the read-side queries over the friendship graph.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/steamlytics/server/apperr"
	"github.com/steamlytics/server/cache"
	"github.com/steamlytics/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// canTransition is the exhaustive transition table for friendship edges.
// Block is handled separately: it forces the blocked state from anywhere.
func canTransition(from, to model.FriendshipStatus) bool {
	switch from {
	case model.FriendshipPending:
		return to == model.FriendshipAccepted || to == model.FriendshipDeclined || to == model.FriendshipBlocked
	case model.FriendshipAccepted:
		return to == model.FriendshipBlocked
	case model.FriendshipDeclined:
		// A declined edge may be retried; the same row returns to pending.
		return to == model.FriendshipPending || to == model.FriendshipBlocked
	case model.FriendshipBlocked:
		return false // only Remove clears a block
	}
	return false
}

// Service handles all friendship operations.
type Service struct {
	db         *gorm.DB
	cache      cache.Cache
	logger     *zap.Logger
	derivedTTL time.Duration
}

// NewService creates a new friendship Service.
func NewService(db *gorm.DB, c cache.Cache, logger *zap.Logger, derivedTTL time.Duration) *Service {
	return &Service{db: db, cache: c, logger: logger, derivedTTL: derivedTTL}
}

// findBetween returns the edge between two users in either direction.
func findBetween(tx *gorm.DB, userA, userB int64) (*model.Friendship, error) {
	var f model.Friendship
	err := tx.Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
		userA, userB, userB, userA).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("friendship between %d and %d", userA, userB)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func userExists(tx *gorm.DB, userID int64) (bool, error) {
	var n int64
	if err := tx.Model(&model.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// SendRequest creates (or revives) a pending edge from requester to addressee.
// A declined edge is reused rather than duplicated, so the unique-pair
// invariant holds even across retries.
func (svc *Service) SendRequest(ctx context.Context, requesterID, addresseeID int64) (*model.Friendship, error) {
	if requesterID == addresseeID {
		return nil, apperr.InvalidOperationf("cannot send friend request to yourself")
	}

	var out *model.Friendship
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range []int64{requesterID, addresseeID} {
			ok, err := userExists(tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFoundf("user %d", id)
			}
		}

		existing, err := findBetween(tx, requesterID, addresseeID)
		if err != nil && !errors.Is(err, apperr.NotFound) {
			return err
		}
		if existing != nil {
			switch existing.Status {
			case model.FriendshipAccepted:
				return apperr.Conflictf("users %d and %d are already friends", requesterID, addresseeID)
			case model.FriendshipPending:
				return apperr.Conflictf("friend request between %d and %d already pending", requesterID, addresseeID)
			case model.FriendshipBlocked:
				return apperr.Conflictf("relationship between %d and %d is blocked", requesterID, addresseeID)
			case model.FriendshipDeclined:
				if !canTransition(existing.Status, model.FriendshipPending) {
					return apperr.Conflictf("edge %d cannot return to pending", existing.ID)
				}
				// Revive the declined row with the new direction.
				existing.RequesterID = requesterID
				existing.AddresseeID = addresseeID
				existing.Status = model.FriendshipPending
				if err := tx.Save(existing).Error; err != nil {
					return err
				}
				out = existing
				return nil
			}
		}

		f := &model.Friendship{
			RequesterID: requesterID,
			AddresseeID: addresseeID,
			Status:      model.FriendshipPending,
		}
		if err := tx.Create(f).Error; err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.evictPair(ctx, requesterID, addresseeID)
	return out, nil
}

// Accept transitions a pending edge to accepted. Only the addressee may accept.
func (svc *Service) Accept(ctx context.Context, friendshipID, actingUserID int64) (*model.Friendship, error) {
	return svc.answer(ctx, friendshipID, actingUserID, model.FriendshipAccepted)
}

// Decline transitions a pending edge to declined. Only the addressee may decline.
func (svc *Service) Decline(ctx context.Context, friendshipID, actingUserID int64) (*model.Friendship, error) {
	return svc.answer(ctx, friendshipID, actingUserID, model.FriendshipDeclined)
}

func (svc *Service) answer(ctx context.Context, friendshipID, actingUserID int64, to model.FriendshipStatus) (*model.Friendship, error) {
	var out *model.Friendship
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f model.Friendship
		if err := tx.First(&f, friendshipID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("friendship %d", friendshipID)
			}
			return err
		}
		if f.AddresseeID != actingUserID {
			return apperr.InvalidOperationf("only the addressee can answer friendship %d", friendshipID)
		}
		if f.Status != model.FriendshipPending {
			return apperr.Conflictf("friendship %d is %s, not pending", friendshipID, f.Status)
		}
		if !canTransition(f.Status, to) {
			return apperr.Conflictf("friendship %d cannot move from %s to %s", friendshipID, f.Status, to)
		}
		f.Status = to
		if err := tx.Save(&f).Error; err != nil {
			return err
		}
		out = &f
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.evictPair(ctx, out.RequesterID, out.AddresseeID)
	return out, nil
}

// Block forces the edge between blocker and blocked into the blocked state,
// creating the edge if none exists.
func (svc *Service) Block(ctx context.Context, blockerID, blockedID int64) (*model.Friendship, error) {
	if blockerID == blockedID {
		return nil, apperr.InvalidOperationf("cannot block yourself")
	}

	var out *model.Friendship
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range []int64{blockerID, blockedID} {
			ok, err := userExists(tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFoundf("user %d", id)
			}
		}

		f, err := findBetween(tx, blockerID, blockedID)
		if errors.Is(err, apperr.NotFound) {
			f = &model.Friendship{RequesterID: blockerID, AddresseeID: blockedID}
		} else if err != nil {
			return err
		}
		f.Status = model.FriendshipBlocked
		if err := tx.Save(f).Error; err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.evictPair(ctx, blockerID, blockedID)
	return out, nil
}

// Remove deletes the edge between two users regardless of status.
func (svc *Service) Remove(ctx context.Context, userA, userB int64) error {
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := findBetween(tx, userA, userB)
		if err != nil {
			return err
		}
		return tx.Delete(f).Error
	})
	if err != nil {
		return err
	}
	svc.evictPair(ctx, userA, userB)
	return nil
}

// ---- queries ----

// FriendIDs returns the ids of the user's accepted friends. The projection
// is cached; every mutation touching the user evicts it.
func (svc *Service) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	key := cache.FriendsKey(userID)
	if raw, err := svc.cache.Get(ctx, key); err == nil {
		var ids []int64
		if json.Unmarshal([]byte(raw), &ids) == nil {
			return ids, nil
		}
	}

	var edges []model.Friendship
	if err := svc.db.WithContext(ctx).
		Where("(requester_id = ? OR addressee_id = ?) AND status = ?",
			userID, userID, model.FriendshipAccepted).
		Find(&edges).Error; err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].OtherUser(userID))
	}

	if raw, err := json.Marshal(ids); err == nil {
		if err := svc.cache.Set(ctx, key, string(raw), svc.derivedTTL); err != nil {
			svc.logger.Warn("friend id cache write failed", zap.Error(err))
		}
	}
	return ids, nil
}

// PendingReceived returns pending requests addressed to the user.
func (svc *Service) PendingReceived(ctx context.Context, userID int64) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := svc.db.WithContext(ctx).
		Where("addressee_id = ? AND status = ?", userID, model.FriendshipPending).
		Order("created_at DESC").
		Find(&edges).Error
	return edges, err
}

// PendingSent returns pending requests the user has sent.
func (svc *Service) PendingSent(ctx context.Context, userID int64) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := svc.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", userID, model.FriendshipPending).
		Order("created_at DESC").
		Find(&edges).Error
	return edges, err
}

// ListByUser returns every edge involving the user, any status.
func (svc *Service) ListByUser(ctx context.Context, userID int64) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := svc.db.WithContext(ctx).
		Where("requester_id = ? OR addressee_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&edges).Error
	return edges, err
}

// ListByStatus returns the user's edges with the given status.
func (svc *Service) ListByStatus(ctx context.Context, userID int64, status model.FriendshipStatus) ([]model.Friendship, error) {
	if !status.Valid() {
		return nil, apperr.InvalidOperationf("unknown friendship status %q", status)
	}
	var edges []model.Friendship
	err := svc.db.WithContext(ctx).
		Where("(requester_id = ? OR addressee_id = ?) AND status = ?", userID, userID, status).
		Order("updated_at DESC").
		Find(&edges).Error
	return edges, err
}

// StatusBetween returns the edge status between two users, if any edge exists.
func (svc *Service) StatusBetween(ctx context.Context, userA, userB int64) (model.FriendshipStatus, error) {
	f, err := findBetween(svc.db.WithContext(ctx), userA, userB)
	if err != nil {
		return "", err
	}
	return f.Status, nil
}

// AreFriends reports whether an accepted edge connects the two users,
// in either direction.
func (svc *Service) AreFriends(ctx context.Context, userA, userB int64) (bool, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)) AND status = ?",
			userA, userB, userB, userA, model.FriendshipAccepted).
		Count(&n).Error
	return n > 0, err
}

// CanSendRequest reports whether a fresh request from requester to addressee
// would be allowed: true only when no edge exists or the edge is declined.
func (svc *Service) CanSendRequest(ctx context.Context, requesterID, addresseeID int64) (bool, error) {
	if requesterID == addresseeID {
		return false, nil
	}
	f, err := findBetween(svc.db.WithContext(ctx), requesterID, addresseeID)
	if errors.Is(err, apperr.NotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == model.FriendshipDeclined, nil
}

// MutualFriendIDs returns the intersection of both users' accepted friend sets.
func (svc *Service) MutualFriendIDs(ctx context.Context, userA, userB int64) ([]int64, error) {
	idsA, err := svc.FriendIDs(ctx, userA)
	if err != nil {
		return nil, err
	}
	idsB, err := svc.FriendIDs(ctx, userB)
	if err != nil {
		return nil, err
	}
	inA := make(map[int64]struct{}, len(idsA))
	for _, id := range idsA {
		inA[id] = struct{}{}
	}
	mutual := make([]int64, 0)
	for _, id := range idsB {
		if _, ok := inA[id]; ok {
			mutual = append(mutual, id)
		}
	}
	return mutual, nil
}

// CountFriends returns the user's accepted-friend count.
func (svc *Service) CountFriends(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("(requester_id = ? OR addressee_id = ?) AND status = ?",
			userID, userID, model.FriendshipAccepted).
		Count(&n).Error
	return n, err
}

// CountPendingReceived returns how many pending requests the user has received.
func (svc *Service) CountPendingReceived(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("addressee_id = ? AND status = ?", userID, model.FriendshipPending).
		Count(&n).Error
	return n, err
}

// CountPendingSent returns how many pending requests the user has sent.
func (svc *Service) CountPendingSent(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("requester_id = ? AND status = ?", userID, model.FriendshipPending).
		Count(&n).Error
	return n, err
}

// Stats bundles the three per-user counters.
func (svc *Service) Stats(ctx context.Context, userID int64) (map[string]int64, error) {
	accepted, err := svc.CountFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	received, err := svc.CountPendingReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	sent, err := svc.CountPendingSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]int64{
		"acceptedFriends": accepted,
		"pendingReceived": received,
		"pendingSent":     sent,
	}, nil
}

// CleanupOldRejected deletes blocked and declined edges whose last update is
// older than maxAgeDays. Maintenance only; safe to run repeatedly.
func (svc *Service) CleanupOldRejected(ctx context.Context, maxAgeDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	res := svc.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]model.FriendshipStatus{model.FriendshipBlocked, model.FriendshipDeclined}, cutoff).
		Delete(&model.Friendship{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("friendship cleanup",
			zap.Int64("deleted", res.RowsAffected),
			zap.Int("max_age_days", maxAgeDays))
	}
	return res.RowsAffected, nil
}

// evictPair drops every cached projection either endpoint can influence.
func (svc *Service) evictPair(ctx context.Context, userA, userB int64) {
	keys := make([]string, 0, 9)
	for _, id := range []int64{userA, userB} {
		keys = append(keys,
			cache.FriendsKey(id),
			cache.StatsKey(id),
			cache.RecsKey(id),
			cache.DashboardKey(id),
		)
	}
	keys = append(keys, cache.CommonGamesKey(userA, userB))
	if err := svc.cache.Del(ctx, keys...); err != nil {
		svc.logger.Warn("friendship cache eviction failed", zap.Error(err))
	}
	// Keep the leaderboard in step with the live counts.
	for _, id := range []int64{userA, userB} {
		if n, err := svc.CountFriends(ctx, id); err == nil {
			_ = svc.cache.ZAdd(ctx, cache.FriendsLeaderboard, float64(n), strconv.FormatInt(id, 10))
		}
	}
}
