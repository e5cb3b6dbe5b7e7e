package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxProfilePictures bounds Profile.ProfilePictures.
const MaxProfilePictures = 5

/*
 * 'Profile' is the public face of a user. UserID equals User.ID.
 */
type Profile struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	UserID          string         `gorm:"size:36;not null;uniqueIndex" json:"user_id"`
	DisplayName     string         `gorm:"size:100;not null" json:"display_name"`
	Username        string         `gorm:"size:20;not null;uniqueIndex" json:"username"`
	Age             *int           `json:"age,omitempty"`
	Bio             string         `gorm:"size:500" json:"bio"`
	University      string         `gorm:"size:150;index" json:"university"`
	Occupation      string         `gorm:"size:150" json:"occupation"`
	PhoneNumber     string         `gorm:"size:20" json:"phone_number,omitempty"`
	Interests       datatypes.JSON `json:"interests"`
	AvatarURL       string         `gorm:"size:500" json:"avatar_url"`
	ProfilePictures datatypes.JSON `json:"profile_pictures"`
	LocationLat     *float64       `json:"location_lat,omitempty"`
	LocationLng     *float64       `json:"location_lng,omitempty"`
	LocationName    string         `gorm:"size:200" json:"location_name"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProfileSummary is the slice of a profile other screens embed next to their rows.
type ProfileSummary struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatar_url"`
}

func (p Profile) Summary() ProfileSummary {
	return ProfileSummary{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Username:    p.Username,
		AvatarURL:   p.AvatarURL,
	}
}
