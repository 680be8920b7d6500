package model

import "time"

// FriendshipStatus is the closed set of relationship states.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipDeclined FriendshipStatus = "declined"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Valid reports whether s is one of the four known states.
func (s FriendshipStatus) Valid() bool {
	switch s {
	case FriendshipPending, FriendshipAccepted, FriendshipDeclined, FriendshipBlocked:
		return true
	}
	return false
}

// Friendship is one relationship edge between two users. A single row holds
// the whole unordered pair: lookups check both directions, and the unique
// index on (requester, addressee) plus the both-direction check in the
// social service keep it to at most one row per pair. Re-sending a request
// after a decline reuses the existing row instead of inserting a second one.
type Friendship struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"friendship_id"`
	RequesterID int64            `gorm:"uniqueIndex:idx_requester_addressee;not null" json:"requester_id"`
	AddresseeID int64            `gorm:"uniqueIndex:idx_requester_addressee;not null" json:"addressee_id"`
	Status      FriendshipStatus `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// OtherUser returns the edge's peer for the given user id.
func (f *Friendship) OtherUser(userID int64) int64 {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// Involves reports whether the edge connects the given user.
func (f *Friendship) Involves(userID int64) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}
