package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultMaxFingers = 5

const (
	GameWaiting  = "waiting"
	GameActive   = "active"
	GameFinished = "finished"
)

/*
 * 'Game' is one "Never Have I Ever" session. CurrentRound doubles as the
 * version checked when a round is advanced.
 */
type Game struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	HostID            string    `gorm:"size:36;not null;index" json:"host_id"`
	Title             string    `gorm:"size:150" json:"title"`
	Status            string    `gorm:"size:16;not null;default:waiting" json:"status"`
	CurrentQuestionID *string   `gorm:"size:36" json:"current_question_id,omitempty"`
	CurrentPlayerTurn *string   `gorm:"size:36" json:"current_player_turn,omitempty"`
	CurrentRound      int       `gorm:"not null;default:0" json:"current_round"`
	MaxFingers        int       `gorm:"not null;default:5" json:"max_fingers"`
	PartyID           *string   `gorm:"size:36;index" json:"party_id,omitempty"`
	WinnerID          *string   `gorm:"size:36" json:"winner_id,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Participants []GameParticipant `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"-"`
	Rounds       []GameRound       `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"-"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = GameWaiting
	}
	if g.MaxFingers == 0 {
		g.MaxFingers = DefaultMaxFingers
	}
	return nil
}

// GameParticipant keeps a player's remaining fingers. Seat is the join order
// used to pass the turn around.
type GameParticipant struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	GameID           string    `gorm:"size:36;not null;uniqueIndex:idx_game_participants_game_user" json:"game_id"`
	UserID           string    `gorm:"size:36;not null;uniqueIndex:idx_game_participants_game_user;index" json:"user_id"`
	Seat             int       `gorm:"not null" json:"seat"`
	FingersRemaining int       `gorm:"not null" json:"fingers_remaining"`
	IsEliminated     bool      `gorm:"not null;default:false" json:"is_eliminated"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *GameParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type GameRound struct {
	ID                 string         `gorm:"primaryKey;size:36" json:"id"`
	GameID             string         `gorm:"size:36;not null;uniqueIndex:idx_game_rounds_game_number" json:"game_id"`
	QuestionID         string         `gorm:"size:36;not null" json:"question_id"`
	AskedBy            string         `gorm:"size:36" json:"asked_by"`
	RoundNumber        int            `gorm:"not null;uniqueIndex:idx_game_rounds_game_number" json:"round_number"`
	ParticipantsWhoDid datatypes.JSON `json:"participants_who_did"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (r *GameRound) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if len(r.ParticipantsWhoDid) == 0 {
		r.ParticipantsWhoDid = EncodeList(nil)
	}
	return nil
}

type Question struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Category    string    `gorm:"size:50;not null;default:general;index" json:"category"`
	Question    string    `gorm:"size:300;not null" json:"question"`
	SubmittedBy *string   `gorm:"size:36" json:"submitted_by,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
