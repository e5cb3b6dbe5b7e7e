package postgres

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

/*
 * 'Friendship' is a directed request that becomes mutual once accepted.
 * UserID sent it, FriendID received it. PairKey is unique for the unordered
 * pair, so only one row can ever exist between two users.
 */
type Friendship struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;index" json:"user_id"`
	FriendID  string    `gorm:"size:36;not null;index:idx_friendships_friend_status" json:"friend_id"`
	Status    string    `gorm:"size:16;not null;default:pending;index:idx_friendships_friend_status" json:"status"`
	PairKey   string    `gorm:"size:80;not null;uniqueIndex" json:"pair_key"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PairKey orders the two ids so both directions map to the same key.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// GORM hook to ensure that both users are different
func (f *Friendship) BeforeSave(tx *gorm.DB) error {
	if f.UserID == f.FriendID {
		return errors.New("cannot create a friendship between the same user")
	}
	if f.PairKey == "" {
		f.PairKey = PairKey(f.UserID, f.FriendID)
	}
	return nil
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Other returns the id on the opposite side of the pair from userID.
func (f Friendship) Other(userID string) string {
	if f.UserID == userID {
		return f.FriendID
	}
	return f.UserID
}
