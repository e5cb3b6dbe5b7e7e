package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultVibe = "Energetic"

const (
	AttendeeAttending = "attending"
	AttendeeInvited   = "invited"
	AttendeeDeclined  = "declined"
)

/*
 * 'Party' is a hosted event. CurrentAttendees is a cached count of attending
 * rows and may lag behind them. Deleting a party only clears IsActive.
 */
type Party struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Title            string     `gorm:"size:150;not null" json:"title"`
	Description      string     `gorm:"size:1000" json:"description"`
	LocationName     string     `gorm:"size:200;not null" json:"location_name"`
	LocationLat      *float64   `json:"location_lat,omitempty"`
	LocationLng      *float64   `json:"location_lng,omitempty"`
	StartTime        time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	MaxAttendees     *int       `json:"max_attendees,omitempty"`
	CurrentAttendees int        `gorm:"default:0" json:"current_attendees"`
	Vibe             string     `gorm:"size:50;default:Energetic" json:"vibe"`
	IsPrivate        bool       `gorm:"default:false" json:"is_private"`
	GroupID          *string    `gorm:"size:36;index" json:"group_id,omitempty"`
	HostID           string     `gorm:"size:36;not null;index" json:"host_id"`
	IsActive         bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Party) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Vibe == "" {
		p.Vibe = DefaultVibe
	}
	return nil
}

type PartyAttendee struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PartyID   string    `gorm:"size:36;not null;uniqueIndex:idx_party_attendees_party_user" json:"party_id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_party_attendees_party_user;index:idx_party_attendees_user_status" json:"user_id"`
	Status    string    `gorm:"size:16;not null;index:idx_party_attendees_user_status" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *PartyAttendee) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
