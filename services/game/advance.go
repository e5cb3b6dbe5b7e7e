package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoundResult struct {
	Game     postgres.Game           `json:"game"`
	Round    postgres.GameRound      `json:"round"`
	Question postgres.Question       `json:"question"`
	Player   postgres.ProfileSummary `json:"player"`
}

// AdvanceRound asks a new question to the next player. Only the host can
// advance. The game row update is conditional on the round number read at
// the start, so two advances racing each other cannot both succeed.
func (s *Service) AdvanceRound(ctx context.Context, callerID, gameID string) (*RoundResult, error) {
	const op = "game.AdvanceRound"
	log := s.log.With(slog.String("op", op), slog.String("game_id", gameID))

	var res RoundResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := lockGame(tx, gameID)
		if err != nil {
			return err
		}
		if game.HostID != callerID {
			return ErrNotHost
		}
		if game.Status == postgres.GameFinished {
			return ErrGameFinished
		}

		var participants []postgres.GameParticipant
		if err := tx.Where("game_id = ?", gameID).Order("seat asc").Find(&participants).Error; err != nil {
			return fmt.Errorf("loading participants: %w", err)
		}
		next, ok := nextPlayer(participants, game.CurrentPlayerTurn)
		if !ok {
			return ErrGameFinished
		}

		pool, err := unusedQuestions(tx, gameID)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return ErrNoMoreQuestions
		}
		questionID := pool[s.pick(len(pool))]

		round, err := bumpRound(tx, game, questionID, next.UserID)
		if err != nil {
			return err
		}

		if err := tx.First(&res.Question, "id = ?", questionID).Error; err != nil {
			return fmt.Errorf("loading question: %w", err)
		}
		if err := tx.First(&res.Game, "id = ?", gameID).Error; err != nil {
			return fmt.Errorf("reloading game: %w", err)
		}
		res.Round = round

		var profile postgres.Profile
		if err := tx.Where("user_id = ?", next.UserID).Limit(1).Find(&profile).Error; err != nil {
			return fmt.Errorf("loading player profile: %w", err)
		}
		res.Player = profile.Summary()
		res.Player.UserID = next.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("round advanced",
		slog.Int("round", res.Round.RoundNumber),
		slog.String("player", res.Player.UserID))

	changefeed.Emit(ctx, s.feed, log,
		gameEvent(changefeed.Update, res.Game),
		roundEvent(changefeed.Insert, res.Round))

	return &res, nil
}

// nextPlayer picks the first non-eliminated participant seated after the
// current turn holder, wrapping around. A holder who is eliminated or not
// found keeps their seat as the reference point; no holder means seat 0.
// participants must be ordered by seat.
func nextPlayer(participants []postgres.GameParticipant, current *string) (postgres.GameParticipant, bool) {
	currentSeat := -1
	if current != nil {
		for _, p := range participants {
			if p.UserID == *current {
				currentSeat = p.Seat
				break
			}
		}
	}

	for _, p := range participants {
		if !p.IsEliminated && p.Seat > currentSeat {
			return p, true
		}
	}
	for _, p := range participants {
		if !p.IsEliminated {
			return p, true
		}
	}
	return postgres.GameParticipant{}, false
}

// unusedQuestions lists every question not yet asked in the game, in a
// stable order.
func unusedQuestions(tx *gorm.DB, gameID string) ([]string, error) {
	asked := tx.Model(&postgres.GameRound{}).Select("question_id").Where("game_id = ?", gameID)

	var ids []string
	if err := tx.Model(&postgres.Question{}).
		Where("id NOT IN (?)", asked).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("loading unused questions: %w", err)
	}
	return ids, nil
}

// bumpRound moves the game to the next round if it is still at the round
// number the caller read, and records the round.
func bumpRound(tx *gorm.DB, game postgres.Game, questionID, playerID string) (postgres.GameRound, error) {
	number := game.CurrentRound + 1

	result := tx.Model(&postgres.Game{}).
		Where("id = ? AND current_round = ?", game.ID, game.CurrentRound).
		Updates(map[string]any{
			"current_question_id": questionID,
			"current_player_turn": playerID,
			"current_round":       number,
			"status":              postgres.GameActive,
		})
	if result.Error != nil {
		return postgres.GameRound{}, fmt.Errorf("updating game: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return postgres.GameRound{}, ErrConcurrentAdvance
	}

	round := postgres.GameRound{
		GameID:             game.ID,
		QuestionID:         questionID,
		AskedBy:            playerID,
		RoundNumber:        number,
		ParticipantsWhoDid: postgres.EncodeList(nil),
	}
	if err := tx.Create(&round).Error; err != nil {
		return postgres.GameRound{}, fmt.Errorf("creating round: %w", err)
	}
	return round, nil
}

func lockGame(tx *gorm.DB, gameID string) (postgres.Game, error) {
	var game postgres.Game
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&game, "id = ?", gameID).Error
	if err != nil {
		return game, errs.NotFoundOr(err, "game")
	}
	return game, nil
}
