// Package chat stores direct and group conversations and their messages.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TableConversations      = "direct_conversations"
	TableMessages           = "direct_messages"
	TableGroupConversations = "group_conversations"
	TableGroupMessages      = "group_messages"

	MaxMessageLength = 4000
)

var (
	ErrSelfChat       = errs.New(errs.ErrValidation, "you cannot message yourself")
	ErrEmptyMessage   = errs.New(errs.ErrValidation, "message cannot be empty")
	ErrMessageTooLong = errs.New(errs.ErrValidation, fmt.Sprintf("messages are limited to %d characters", MaxMessageLength))
	ErrNotParticipant = errs.New(errs.ErrForbidden, "you are not part of this conversation")
)

type Service struct {
	db   *gorm.DB
	feed changefeed.Publisher
	log  *slog.Logger
}

func NewService(db *gorm.DB, feed changefeed.Publisher, log *slog.Logger) *Service {
	return &Service{db: db, feed: feed, log: log.With(slog.String("service", "chat"))}
}

// ConversationSummary is one row of the inbox.
type ConversationSummary struct {
	postgres.DirectConversation
	Other       postgres.ProfileSummary `json:"other"`
	LastMessage *postgres.DirectMessage `json:"last_message,omitempty"`
	Unread      int64                   `json:"unread"`
}

type History struct {
	Conversation postgres.DirectConversation `json:"conversation"`
	Other        postgres.ProfileSummary     `json:"other"`
	Days         []Day                       `json:"days"`
	MarkedRead   int64                       `json:"marked_read"`
}

// GetOrCreateConversation returns the thread between userID and otherID,
// creating it on first use.
func (s *Service) GetOrCreateConversation(ctx context.Context, userID, otherID string) (*postgres.DirectConversation, error) {
	if userID == otherID {
		return nil, ErrSelfChat
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&postgres.Profile{}).Where("user_id = ?", otherID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if count == 0 {
		return nil, errs.New(errs.ErrNotFound, "user not found")
	}

	conv := postgres.DirectConversation{UserA: userID, UserB: otherID, PairKey: postgres.PairKey(userID, otherID)}
	result := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).Create(&conv)
	if result.Error != nil {
		return nil, fmt.Errorf("creating conversation: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		changefeed.Emit(ctx, s.feed, s.log, conversationEvent(changefeed.Insert, conv))
		return &conv, nil
	}

	var existing postgres.DirectConversation
	if err := db.Where("pair_key = ?", conv.PairKey).First(&existing).Error; err != nil {
		return nil, errs.NotFoundOr(err, "conversation")
	}
	return &existing, nil
}

// Conversations lists userID's threads, most recently active first, with
// unread counts from one grouped query.
func (s *Service) Conversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	db := s.db.WithContext(ctx)

	var convs []postgres.DirectConversation
	if err := db.Where("user_a = ? OR user_b = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) desc").
		Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	if len(convs) == 0 {
		return []ConversationSummary{}, nil
	}

	ids := make([]string, len(convs))
	others := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
		others[i] = c.Other(userID)
	}

	unread, err := UnreadByConversation(db, userID)
	if err != nil {
		return nil, err
	}
	last, err := lastMessages(db, ids)
	if err != nil {
		return nil, err
	}
	summaries, err := profiles.Summaries(db, others)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, len(convs))
	for i, c := range convs {
		out[i] = ConversationSummary{
			DirectConversation: c,
			Other:              summaries[others[i]],
			LastMessage:        last[c.ID],
			Unread:             unread[c.ID],
		}
	}
	return out, nil
}

// History returns the thread in ascending order grouped by day in loc and
// marks the viewer's unread messages as read.
func (s *Service) History(ctx context.Context, viewerID, conversationID string, loc *time.Location) (*History, error) {
	db := s.db.WithContext(ctx)

	conv, err := s.participantOf(db, viewerID, conversationID)
	if err != nil {
		return nil, err
	}

	var messages []postgres.DirectMessage
	if err := db.Where("conversation_id = ?", conversationID).
		Order("created_at asc").Order("id asc").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}

	marked, err := s.markRead(ctx, viewerID, conv)
	if err != nil {
		return nil, err
	}

	other := conv.Other(viewerID)
	summaries, err := profiles.Summaries(db, []string{other})
	if err != nil {
		return nil, err
	}

	return &History{
		Conversation: conv,
		Other:        summaries[other],
		Days:         GroupByDay(FromDirect(messages), loc),
		MarkedRead:   marked,
	}, nil
}

// Send appends a message to an existing conversation.
func (s *Service) Send(ctx context.Context, senderID, conversationID, content string) (*postgres.DirectMessage, error) {
	const op = "chat.Send"

	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}

	var (
		msg  postgres.DirectMessage
		conv postgres.DirectConversation
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if conv, err = s.participantOf(tx, senderID, conversationID); err != nil {
			return err
		}

		msg = postgres.DirectMessage{ConversationID: conv.ID, SenderID: senderID, Content: content, CreatedAt: time.Now()}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("creating message: %w", err)
		}
		conv.LastMessageAt = &msg.CreatedAt
		return tx.Model(&conv).Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("message sent", slog.String("op", op), slog.String("conversation_id", conv.ID))
	changefeed.Emit(ctx, s.feed, s.log,
		messageEvent(changefeed.Insert, msg, conv.Other(senderID)),
		conversationEvent(changefeed.Update, conv),
	)
	return &msg, nil
}

// SendTo messages otherID directly, opening the conversation if needed.
func (s *Service) SendTo(ctx context.Context, senderID, otherID, content string) (*postgres.DirectMessage, error) {
	if _, err := cleanContent(content); err != nil {
		return nil, err
	}
	conv, err := s.GetOrCreateConversation(ctx, senderID, otherID)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, senderID, conv.ID, content)
}

// MarkRead marks every message viewerID received in the conversation as
// read and returns how many changed.
func (s *Service) MarkRead(ctx context.Context, viewerID, conversationID string) (int64, error) {
	conv, err := s.participantOf(s.db.WithContext(ctx), viewerID, conversationID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, viewerID, conv)
}

// MarkMessageRead marks one received message as read.
func (s *Service) MarkMessageRead(ctx context.Context, viewerID, messageID string) error {
	db := s.db.WithContext(ctx)

	var msg postgres.DirectMessage
	if err := db.First(&msg, "id = ?", messageID).Error; err != nil {
		return errs.NotFoundOr(err, "message")
	}
	conv, err := s.participantOf(db, viewerID, msg.ConversationID)
	if err != nil {
		return err
	}
	if msg.SenderID == viewerID || msg.ReadAt != nil {
		return nil
	}

	now := time.Now()
	if err := db.Model(&msg).Update("read_at", now).Error; err != nil {
		return fmt.Errorf("marking message read: %w", err)
	}
	msg.ReadAt = &now
	changefeed.Emit(ctx, s.feed, s.log, messageEvent(changefeed.Update, msg, conv.Other(msg.SenderID)))
	return nil
}

func (s *Service) markRead(ctx context.Context, viewerID string, conv postgres.DirectConversation) (int64, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&postgres.DirectMessage{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conv.ID, viewerID).
		Update("read_at", now)
	if result.Error != nil {
		return 0, fmt.Errorf("marking messages read: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		changefeed.Emit(ctx, s.feed, s.log, changefeed.New(TableMessages, changefeed.Update,
			map[string]any{"conversation_id": conv.ID, "reader_id": viewerID, "read_at": now},
			map[string]string{
				"conversation_id": conv.ID,
				"sender_id":       conv.Other(viewerID),
				"recipient_id":    viewerID,
			}))
	}
	return result.RowsAffected, nil
}

func (s *Service) participantOf(db *gorm.DB, userID, conversationID string) (postgres.DirectConversation, error) {
	var conv postgres.DirectConversation
	if err := db.First(&conv, "id = ?", conversationID).Error; err != nil {
		return conv, errs.NotFoundOr(err, "conversation")
	}
	if !conv.HasParticipant(userID) {
		return conv, ErrNotParticipant
	}
	return conv, nil
}

// UnreadByConversation counts unread incoming messages per conversation of
// userID in a single grouped query.
func UnreadByConversation(db *gorm.DB, userID string) (map[string]int64, error) {
	var rows []struct {
		ConversationID string
		Unread         int64
	}
	err := db.Table("direct_messages AS m").
		Select("m.conversation_id, count(*) AS unread").
		Joins("JOIN direct_conversations AS c ON c.id = m.conversation_id").
		Where("(c.user_a = ? OR c.user_b = ?) AND m.sender_id <> ? AND m.read_at IS NULL", userID, userID, userID).
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting unread messages: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ConversationID] = r.Unread
	}
	return out, nil
}

func lastMessages(db *gorm.DB, conversationIDs []string) (map[string]*postgres.DirectMessage, error) {
	latest := db.Model(&postgres.DirectMessage{}).
		Select("conversation_id, MAX(created_at) AS created_at").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id")

	var messages []postgres.DirectMessage
	if err := db.Table("direct_messages AS m").
		Select("m.*").
		Joins("JOIN (?) AS latest ON latest.conversation_id = m.conversation_id AND latest.created_at = m.created_at", latest).
		Scan(&messages).Error; err != nil {
		return nil, fmt.Errorf("loading last messages: %w", err)
	}

	out := make(map[string]*postgres.DirectMessage, len(messages))
	for i := range messages {
		m := &messages[i]
		if prev, ok := out[m.ConversationID]; !ok || prev.ID < m.ID {
			out[m.ConversationID] = m
		}
	}
	return out, nil
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return "", ErrEmptyMessage
	case len([]rune(content)) > MaxMessageLength:
		return "", ErrMessageTooLong
	}
	return content, nil
}

func conversationEvent(op changefeed.Op, c postgres.DirectConversation) changefeed.Event {
	return changefeed.New(TableConversations, op, c, map[string]string{
		"id":     c.ID,
		"user_a": c.UserA,
		"user_b": c.UserB,
	})
}

func messageEvent(op changefeed.Op, m postgres.DirectMessage, recipientID string) changefeed.Event {
	return changefeed.New(TableMessages, op, m, map[string]string{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"recipient_id":    recipientID,
	})
}
