// Package friends manages friend requests and friendships.
package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"gorm.io/gorm"
)

const TableFriendships = "friendships"

var (
	ErrSelfRequest     = errs.New(errs.ErrValidation, "you cannot add yourself as a friend")
	ErrAlreadyFriends  = errs.New(errs.ErrAlreadyExists, "a friendship or request already exists")
	ErrRequestNotFound = errs.New(errs.ErrNotFound, "friend request not found")
)

type Service struct {
	db   *gorm.DB
	feed changefeed.Publisher
	log  *slog.Logger
}

func NewService(db *gorm.DB, feed changefeed.Publisher, log *slog.Logger) *Service {
	return &Service{db: db, feed: feed, log: log.With(slog.String("service", "friends"))}
}

// Request is a friendship row seen from one side, with the other user.
type Request struct {
	postgres.Friendship
	Other postgres.ProfileSummary `json:"other"`
}

// SendRequest creates a pending request from userID to friendID. Only one
// row may exist per pair, whichever direction it was sent in.
func (s *Service) SendRequest(ctx context.Context, userID, friendID string) (*postgres.Friendship, error) {
	const op = "friends.SendRequest"

	if userID == friendID {
		return nil, ErrSelfRequest
	}

	f := postgres.Friendship{
		UserID:   userID,
		FriendID: friendID,
		Status:   postgres.FriendshipPending,
		PairKey:  postgres.PairKey(userID, friendID),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target postgres.Profile
		if err := tx.Where("user_id = ?", friendID).First(&target).Error; err != nil {
			return errs.NotFoundOr(err, "user")
		}

		var count int64
		if err := tx.Model(&postgres.Friendship{}).Where("pair_key = ?", f.PairKey).Count(&count).Error; err != nil {
			return fmt.Errorf("checking pair: %w", err)
		}
		if count > 0 {
			return ErrAlreadyFriends
		}

		if err := tx.Create(&f).Error; err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("friend request sent", slog.String("op", op), slog.String("from", userID), slog.String("to", friendID))
	changefeed.Emit(ctx, s.feed, s.log, friendshipEvent(changefeed.Insert, f))
	return &f, nil
}

// Accept turns a pending request addressed to userID into a friendship.
// Accepting twice, or after the request was declined, reports not found.
func (s *Service) Accept(ctx context.Context, userID, requestID string) (*postgres.Friendship, error) {
	var f postgres.Friendship

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND friend_id = ? AND status = ?", requestID, userID, postgres.FriendshipPending).
			First(&f).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("loading request: %w", err)
		}

		// Model(&f) so the save hooks see the real pair
		result := tx.Model(&f).
			Where("status = ?", postgres.FriendshipPending).
			Update("status", postgres.FriendshipAccepted)
		if result.Error != nil {
			return fmt.Errorf("accepting request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRequestNotFound
		}
		f.Status = postgres.FriendshipAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}

	changefeed.Emit(ctx, s.feed, s.log, friendshipEvent(changefeed.Update, f))
	return &f, nil
}

// Decline deletes a pending request addressed to userID.
func (s *Service) Decline(ctx context.Context, userID, requestID string) error {
	var f postgres.Friendship
	if err := s.db.WithContext(ctx).
		Where("id = ? AND friend_id = ? AND status = ?", requestID, userID, postgres.FriendshipPending).
		First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("loading request: %w", err)
	}

	result := s.db.WithContext(ctx).Where("id = ? AND status = ?", f.ID, postgres.FriendshipPending).Delete(&postgres.Friendship{})
	if result.Error != nil {
		return fmt.Errorf("declining request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}

	changefeed.Emit(ctx, s.feed, s.log, friendshipEvent(changefeed.Delete, f))
	return nil
}

// CancelRequest withdraws a pending request userID sent.
func (s *Service) CancelRequest(ctx context.Context, userID, requestID string) error {
	var f postgres.Friendship
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", requestID, userID, postgres.FriendshipPending).
		First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("loading request: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&f).Error; err != nil {
		return fmt.Errorf("cancelling request: %w", err)
	}
	changefeed.Emit(ctx, s.feed, s.log, friendshipEvent(changefeed.Delete, f))
	return nil
}

// Remove ends an accepted friendship between userID and friendID.
func (s *Service) Remove(ctx context.Context, userID, friendID string) error {
	var f postgres.Friendship
	if err := s.db.WithContext(ctx).
		Where("pair_key = ? AND status = ?", postgres.PairKey(userID, friendID), postgres.FriendshipAccepted).
		First(&f).Error; err != nil {
		return errs.NotFoundOr(err, "friendship")
	}
	if err := s.db.WithContext(ctx).Delete(&f).Error; err != nil {
		return fmt.Errorf("removing friendship: %w", err)
	}
	changefeed.Emit(ctx, s.feed, s.log, friendshipEvent(changefeed.Delete, f))
	return nil
}

// Incoming lists pending requests sent to userID, newest first.
func (s *Service) Incoming(ctx context.Context, userID string) ([]Request, error) {
	return s.list(ctx, userID, "friend_id = ? AND status = ?", userID, postgres.FriendshipPending)
}

// Sent lists pending requests userID sent, newest first.
func (s *Service) Sent(ctx context.Context, userID string) ([]Request, error) {
	return s.list(ctx, userID, "user_id = ? AND status = ?", userID, postgres.FriendshipPending)
}

// Friends lists accepted friendships in either direction.
func (s *Service) Friends(ctx context.Context, userID string) ([]Request, error) {
	return s.list(ctx, userID, "(user_id = ? OR friend_id = ?) AND status = ?", userID, userID, postgres.FriendshipAccepted)
}

// FriendIDs returns the ids of userID's accepted friends.
func FriendIDs(db *gorm.DB, userID string) ([]string, error) {
	var rows []postgres.Friendship
	if err := db.Where("(user_id = ? OR friend_id = ?) AND status = ?", userID, userID, postgres.FriendshipAccepted).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading friends: %w", err)
	}
	ids := make([]string, len(rows))
	for i, f := range rows {
		ids[i] = f.Other(userID)
	}
	return ids, nil
}

// AreFriends reports whether the two users have an accepted friendship.
func AreFriends(db *gorm.DB, a, b string) (bool, error) {
	var count int64
	if err := db.Model(&postgres.Friendship{}).
		Where("pair_key = ? AND status = ?", postgres.PairKey(a, b), postgres.FriendshipAccepted).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return count > 0, nil
}

func (s *Service) list(ctx context.Context, userID string, query string, args ...any) ([]Request, error) {
	db := s.db.WithContext(ctx)

	var rows []postgres.Friendship
	if err := db.Where(query, args...).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing friendships: %w", err)
	}

	others := make([]string, len(rows))
	for i, f := range rows {
		others[i] = f.Other(userID)
	}
	summaries, err := profiles.Summaries(db, others)
	if err != nil {
		return nil, err
	}

	out := make([]Request, len(rows))
	for i, f := range rows {
		out[i] = Request{Friendship: f, Other: summaries[others[i]]}
	}
	return out, nil
}

func friendshipEvent(op changefeed.Op, f postgres.Friendship) changefeed.Event {
	return changefeed.New(TableFriendships, op, f, map[string]string{
		"id":        f.ID,
		"user_id":   f.UserID,
		"friend_id": f.FriendID,
	})
}
