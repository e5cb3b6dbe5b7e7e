package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GroupRoleAdmin  = "admin"
	GroupRoleMember = "member"
)

type Group struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	AvatarURL   string    `gorm:"size:500" json:"avatar_url"`
	IsPrivate   bool      `gorm:"default:false" json:"is_private"`
	AdminID     string    `gorm:"size:36;not null;index" json:"admin_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Members []GroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

/*
 * 'GroupMember' links a user to a group. JoinedAt orders members, which is
 * also the seating order of games started from the group.
 */
type GroupMember struct {
	ID       string    `gorm:"primaryKey;size:36" json:"id"`
	GroupID  string    `gorm:"size:36;not null;uniqueIndex:idx_group_members_group_user" json:"group_id"`
	UserID   string    `gorm:"size:36;not null;uniqueIndex:idx_group_members_group_user;index" json:"user_id"`
	Role     string    `gorm:"size:16;not null;default:member" json:"role"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func (m *GroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}
