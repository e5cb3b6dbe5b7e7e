package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	redis_models "github.com/Maxapelquist/preparty-social-hub/models/redis"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"gorm.io/gorm"
)

type ParticipantView struct {
	postgres.GameParticipant
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type RoundView struct {
	RoundNumber        int      `json:"round_number"`
	QuestionID         string   `json:"question_id"`
	Question           string   `json:"question"`
	AskedBy            string   `json:"asked_by"`
	ParticipantsWhoDid []string `json:"participants_who_did"`
}

type State struct {
	Game            postgres.Game             `json:"game"`
	Participants    []ParticipantView         `json:"participants"`
	CurrentQuestion *postgres.Question        `json:"current_question,omitempty"`
	Rounds          []RoundView               `json:"rounds"`
	MyAnswer        *redis_models.RoundAnswer `json:"my_answer,omitempty"`
	Winner          *postgres.ProfileSummary  `json:"winner,omitempty"`
}

// State gathers what a player's screen needs. Only the host and the
// participants may look at a game.
func (s *Service) State(ctx context.Context, viewerID, gameID string) (*State, error) {
	db := s.db.WithContext(ctx)

	var st State
	if err := db.First(&st.Game, "id = ?", gameID).Error; err != nil {
		return nil, errs.NotFoundOr(err, "game")
	}

	var participants []postgres.GameParticipant
	if err := db.Where("game_id = ?", gameID).Order("seat asc").Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}

	isParticipant := false
	userIDs := make([]string, len(participants))
	for i, p := range participants {
		userIDs[i] = p.UserID
		if p.UserID == viewerID {
			isParticipant = true
		}
	}
	if !isParticipant && st.Game.HostID != viewerID {
		return nil, ErrNotParticipant
	}

	profiles, err := profilesByUser(db, userIDs)
	if err != nil {
		return nil, err
	}
	st.Participants = make([]ParticipantView, len(participants))
	for i, p := range participants {
		st.Participants[i] = ParticipantView{
			GameParticipant: p,
			DisplayName:     profiles[p.UserID].DisplayName,
			AvatarURL:       profiles[p.UserID].AvatarURL,
		}
	}

	var rounds []postgres.GameRound
	if err := db.Where("game_id = ?", gameID).Order("round_number asc").Find(&rounds).Error; err != nil {
		return nil, fmt.Errorf("loading rounds: %w", err)
	}
	questionIDs := make([]string, len(rounds))
	for i, r := range rounds {
		questionIDs[i] = r.QuestionID
	}
	var questions []postgres.Question
	if len(questionIDs) > 0 {
		if err := db.Where("id IN ?", questionIDs).Find(&questions).Error; err != nil {
			return nil, fmt.Errorf("loading questions: %w", err)
		}
	}
	texts := make(map[string]postgres.Question, len(questions))
	for _, q := range questions {
		texts[q.ID] = q
	}

	st.Rounds = make([]RoundView, len(rounds))
	for i, r := range rounds {
		st.Rounds[i] = RoundView{
			RoundNumber:        r.RoundNumber,
			QuestionID:         r.QuestionID,
			Question:           texts[r.QuestionID].Question,
			AskedBy:            r.AskedBy,
			ParticipantsWhoDid: postgres.DecodeList(r.ParticipantsWhoDid),
		}
	}

	if st.Game.CurrentQuestionID != nil {
		if q, ok := texts[*st.Game.CurrentQuestionID]; ok {
			st.CurrentQuestion = &q
		}
	}

	if st.Game.WinnerID != nil {
		winner := profiles[*st.Game.WinnerID].Summary()
		winner.UserID = *st.Game.WinnerID
		st.Winner = &winner
	}

	if isParticipant && st.Game.Status == postgres.GameActive {
		answer, err := s.MyAnswer(ctx, gameID, st.Game.CurrentRound, viewerID)
		if err != nil {
			// the screen still works without it
			s.log.Warn("failed to read answer", "game_id", gameID, "error", err)
		}
		st.MyAnswer = answer
	}

	return &st, nil
}

// ListGames returns the games userID plays in or hosts, newest first.
func (s *Service) ListGames(ctx context.Context, userID string) ([]postgres.Game, error) {
	db := s.db.WithContext(ctx)

	playing := db.Model(&postgres.GameParticipant{}).Select("game_id").Where("user_id = ?", userID)

	var games []postgres.Game
	if err := db.Where("host_id = ? OR id IN (?)", userID, playing).
		Order("created_at desc").
		Find(&games).Error; err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	return games, nil
}

// IsParticipant is used to authorize live subscriptions to a game.
func (s *Service) IsParticipant(ctx context.Context, gameID, userID string) (bool, error) {
	var p postgres.GameParticipant
	err := s.db.WithContext(ctx).Where("game_id = ? AND user_id = ?", gameID, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func profilesByUser(db *gorm.DB, userIDs []string) (map[string]postgres.Profile, error) {
	out := make(map[string]postgres.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []postgres.Profile
	if err := db.Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out, nil
}
