package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
 * 'DirectConversation' is the thread between two users, keyed by PairKey so
 * a pair never gets a second thread.
 */
type DirectConversation struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserA         string     `gorm:"size:36;not null;index" json:"user_a"`
	UserB         string     `gorm:"size:36;not null;index" json:"user_b"`
	PairKey       string     `gorm:"size:80;not null;uniqueIndex" json:"pair_key"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (c *DirectConversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.UserA, c.UserB)
	}
	return nil
}

func (c DirectConversation) HasParticipant(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

func (c DirectConversation) Other(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// DirectMessage rows are immutable apart from ReadAt.
type DirectMessage struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string     `gorm:"size:36;not null;index:idx_direct_messages_conversation_created" json:"conversation_id"`
	SenderID       string     `gorm:"size:36;not null;index" json:"sender_id"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time  `gorm:"index:idx_direct_messages_conversation_created" json:"created_at"`
	ReadAt         *time.Time `gorm:"index" json:"read_at,omitempty"`
}

func (m *DirectMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}

type GroupConversation struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	GroupID       string     `gorm:"size:36;not null;uniqueIndex" json:"group_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (c *GroupConversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type GroupMessage struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"size:36;not null;index:idx_group_messages_conversation_created" json:"conversation_id"`
	SenderID       string    `gorm:"size:36;not null" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index:idx_group_messages_conversation_created" json:"created_at"`
}

func (m *GroupMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}
