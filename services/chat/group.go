package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupMessage struct {
	postgres.GroupMessage
	Sender postgres.ProfileSummary `json:"sender"`
}

type GroupHistory struct {
	Conversation postgres.GroupConversation `json:"conversation"`
	Messages     []GroupMessage             `json:"messages"`
	Days         []Day                      `json:"days"`
}

// OpenGroupChat returns the group's conversation, creating it on first
// access. Only members may open it.
func (s *Service) OpenGroupChat(ctx context.Context, viewerID, groupID string) (*postgres.GroupConversation, error) {
	db := s.db.WithContext(ctx)
	if err := requireMember(db, groupID, viewerID); err != nil {
		return nil, err
	}

	conv := postgres.GroupConversation{GroupID: groupID}
	result := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "group_id"}}, DoNothing: true}).Create(&conv)
	if result.Error != nil {
		return nil, fmt.Errorf("creating group conversation: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		changefeed.Emit(ctx, s.feed, s.log, changefeed.New(TableGroupConversations, changefeed.Insert, conv,
			map[string]string{"id": conv.ID, "group_id": groupID}))
		return &conv, nil
	}

	var existing postgres.GroupConversation
	if err := db.Where("group_id = ?", groupID).First(&existing).Error; err != nil {
		return nil, errs.NotFoundOr(err, "group conversation")
	}
	return &existing, nil
}

// GroupHistory returns the group thread with each sender's name and avatar.
func (s *Service) GroupHistory(ctx context.Context, viewerID, groupID string, loc *time.Location) (*GroupHistory, error) {
	conv, err := s.OpenGroupChat(ctx, viewerID, groupID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var rows []postgres.GroupMessage
	if err := db.Where("conversation_id = ?", conv.ID).
		Order("created_at asc").Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading group messages: %w", err)
	}

	senders := make([]string, 0, len(rows))
	for _, m := range rows {
		senders = append(senders, m.SenderID)
	}
	summaries, err := profiles.Summaries(db, senders)
	if err != nil {
		return nil, err
	}

	messages := make([]GroupMessage, len(rows))
	for i, m := range rows {
		messages[i] = GroupMessage{GroupMessage: m, Sender: summaries[m.SenderID]}
	}
	return &GroupHistory{
		Conversation: *conv,
		Messages:     messages,
		Days:         GroupByDay(FromGroup(rows), loc),
	}, nil
}

func (s *Service) SendGroupMessage(ctx context.Context, senderID, groupID, content string) (*GroupMessage, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	conv, err := s.OpenGroupChat(ctx, senderID, groupID)
	if err != nil {
		return nil, err
	}

	msg := postgres.GroupMessage{ConversationID: conv.ID, SenderID: senderID, Content: content, CreatedAt: time.Now()}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("creating group message: %w", err)
		}
		return tx.Model(conv).Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}

	summaries, err := profiles.Summaries(s.db.WithContext(ctx), []string{senderID})
	if err != nil {
		return nil, err
	}
	out := GroupMessage{GroupMessage: msg, Sender: summaries[senderID]}

	changefeed.Emit(ctx, s.feed, s.log, changefeed.New(TableGroupMessages, changefeed.Insert, out, map[string]string{
		"id":              msg.ID,
		"conversation_id": conv.ID,
		"group_id":        groupID,
		"sender_id":       senderID,
	}))
	return &out, nil
}

func requireMember(db *gorm.DB, groupID, userID string) error {
	var group postgres.Group
	if err := db.Select("id").First(&group, "id = ?", groupID).Error; err != nil {
		return errs.NotFoundOr(err, "group")
	}
	ok, err := groups.IsMember(db, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return groups.ErrNotMember
	}
	return nil
}
