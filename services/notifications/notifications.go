// Package notifications computes the badge counts shown in the app shell.
package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"

	"gorm.io/gorm"
)

// Counts are recomputed on every call.
type Counts struct {
	Groups  int64 `json:"groups"`
	Chat    int64 `json:"chat"`
	Parties int64 `json:"parties"`
	Total   int64 `json:"total"`
}

type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log.With(slog.String("service", "notifications"))}
}

// Counts returns pending friend requests (shown on the groups tab), unread
// direct messages and open party invitations for userID.
func (s *Service) Counts(ctx context.Context, userID string) (Counts, error) {
	const op = "notifications.Counts"
	db := s.db.WithContext(ctx)

	var c Counts
	if err := db.Model(&postgres.Friendship{}).
		Where("friend_id = ? AND status = ?", userID, postgres.FriendshipPending).
		Count(&c.Groups).Error; err != nil {
		return c, fmt.Errorf("%s: counting friend requests: %w", op, err)
	}

	if err := db.Table("direct_messages AS m").
		Joins("JOIN direct_conversations AS c ON c.id = m.conversation_id").
		Where("(c.user_a = ? OR c.user_b = ?) AND m.sender_id <> ? AND m.read_at IS NULL", userID, userID, userID).
		Count(&c.Chat).Error; err != nil {
		return c, fmt.Errorf("%s: counting unread messages: %w", op, err)
	}

	if err := db.Model(&postgres.PartyAttendee{}).
		Where("user_id = ? AND status = ?", userID, postgres.AttendeeInvited).
		Count(&c.Parties).Error; err != nil {
		return c, fmt.Errorf("%s: counting invitations: %w", op, err)
	}

	c.Total = c.Groups + c.Chat + c.Parties
	return c, nil
}

// Affected lists the users whose counts may have changed because of ev.
func Affected(ev changefeed.Event) []string {
	var keys []string
	switch ev.Table {
	case "friendships":
		keys = []string{"user_id", "friend_id"}
	case "direct_messages":
		keys = []string{"recipient_id"}
	case "party_attendees":
		keys = []string{"user_id"}
	default:
		return nil
	}

	var users []string
	for _, k := range keys {
		if id := ev.Keys[k]; id != "" {
			users = append(users, id)
		}
	}
	return users
}
