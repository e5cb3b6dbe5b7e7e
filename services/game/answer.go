package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	redis_models "github.com/Maxapelquist/preparty-social-hub/models/redis"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"gorm.io/gorm"
)

const (
	AudienceSelf = "self"
	AudienceAll  = "all"

	NoticeSelfEliminated   = "self_eliminated"
	NoticePlayerEliminated = "player_eliminated"
	NoticeWinner           = "winner"
)

// Notice is a message the clients show when a game changes hands.
type Notice struct {
	Kind     string `json:"kind"`
	Audience string `json:"audience"`
	UserID   string `json:"user_id"`
	Message  string `json:"message"`
}

type Outcome struct {
	Game        postgres.Game            `json:"game"`
	Participant postgres.GameParticipant `json:"participant"`
	Eliminated  bool                     `json:"eliminated"`
	Finished    bool                     `json:"finished"`
	WinnerID    string                   `json:"winner_id,omitempty"`
	Notices     []Notice                 `json:"notices"`
}

type AnswerParams struct {
	GameID string
	UserID string
	// Round is the round the player is answering. Zero means the current one.
	Round int
	DidIt bool
}

// Answer records a player's answer to the current question. "I have" costs
// a finger; a player reaching zero is out, and the last one left wins.
func (s *Service) Answer(ctx context.Context, p AnswerParams) (*Outcome, error) {
	const op = "game.Answer"
	log := s.log.With(slog.String("op", op), slog.String("game_id", p.GameID), slog.String("user_id", p.UserID))

	game, participant, err := s.loadForAnswer(ctx, p)
	if err != nil {
		return nil, err
	}
	round := game.CurrentRound

	recorded, err := s.answers.RecordAnswer(ctx, p.GameID, round, redis_models.RoundAnswer{
		UserID:     p.UserID,
		DidIt:      p.DidIt,
		AnsweredAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !recorded {
		return nil, ErrAlreadyAnswered
	}

	answerEvent := changefeed.New(TableAnswers, changefeed.Broadcast, map[string]any{
		"user_id": p.UserID,
		"round":   round,
		"did_it":  p.DidIt,
	}, map[string]string{"game_id": p.GameID})

	if !p.DidIt {
		changefeed.Emit(ctx, s.feed, log, answerEvent)
		return &Outcome{Game: game, Participant: participant, Notices: []Notice{}}, nil
	}

	var out *Outcome
	var updatedRound postgres.GameRound
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := lockGame(tx, p.GameID)
		if err != nil {
			return err
		}
		if game.Status == postgres.GameFinished {
			return ErrGameFinished
		}
		if game.CurrentRound != round {
			return ErrStaleRound
		}

		var current postgres.GameRound
		if err := tx.Where("game_id = ? AND round_number = ?", p.GameID, round).First(&current).Error; err != nil {
			return errs.NotFoundOr(err, "round")
		}
		did := postgres.DecodeList(current.ParticipantsWhoDid)
		if postgres.ContainsString(did, p.UserID) {
			return ErrAlreadyAnswered
		}

		out, err = takeFinger(tx, game, p.UserID)
		if err != nil {
			return err
		}

		current.ParticipantsWhoDid = postgres.EncodeList(append(did, p.UserID))
		if err := tx.Model(&current).Update("participants_who_did", current.ParticipantsWhoDid).Error; err != nil {
			return fmt.Errorf("updating round: %w", err)
		}
		updatedRound = current
		return nil
	})
	if err != nil {
		if ferr := s.answers.ForgetAnswer(ctx, p.GameID, round, p.UserID); ferr != nil {
			log.Warn("failed to forget answer", slog.Any("error", ferr))
		}
		return nil, err
	}

	if out.Eliminated {
		log.Info("player eliminated", slog.Bool("finished", out.Finished))
	}

	events := []changefeed.Event{
		answerEvent,
		participantEvent(changefeed.Update, out.Participant),
		roundEvent(changefeed.Update, updatedRound),
	}
	if out.Finished {
		events = append(events, gameEvent(changefeed.Update, out.Game))
	}
	events = append(events, noticeEvents(p.GameID, out.Notices)...)
	changefeed.Emit(ctx, s.feed, log, events...)

	return out, nil
}

// MyAnswer returns what userID answered in the current round, if anything.
func (s *Service) MyAnswer(ctx context.Context, gameID string, round int, userID string) (*redis_models.RoundAnswer, error) {
	if round == 0 {
		return nil, nil
	}
	return s.answers.RoundAnswer(ctx, gameID, round, userID)
}

func (s *Service) loadForAnswer(ctx context.Context, p AnswerParams) (postgres.Game, postgres.GameParticipant, error) {
	db := s.db.WithContext(ctx)

	var game postgres.Game
	if err := db.First(&game, "id = ?", p.GameID).Error; err != nil {
		return game, postgres.GameParticipant{}, errs.NotFoundOr(err, "game")
	}

	var participant postgres.GameParticipant
	if err := db.Where("game_id = ? AND user_id = ?", p.GameID, p.UserID).First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return game, participant, ErrNotParticipant
		}
		return game, participant, fmt.Errorf("loading participant: %w", err)
	}

	switch {
	case game.Status == postgres.GameFinished:
		return game, participant, ErrGameFinished
	case game.Status != postgres.GameActive || game.CurrentQuestionID == nil:
		return game, participant, ErrNoActiveRound
	case p.Round != 0 && p.Round != game.CurrentRound:
		return game, participant, ErrStaleRound
	case participant.IsEliminated:
		return game, participant, ErrEliminated
	}
	return game, participant, nil
}

// RemoveFinger takes a finger from a player by hand. The host can do it to
// anyone, players only to themselves.
func (s *Service) RemoveFinger(ctx context.Context, callerID, gameID, userID string) (*Outcome, error) {
	const op = "game.RemoveFinger"
	log := s.log.With(slog.String("op", op), slog.String("game_id", gameID), slog.String("user_id", userID))

	var out *Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := lockGame(tx, gameID)
		if err != nil {
			return err
		}
		if callerID != game.HostID && callerID != userID {
			return errs.New(errs.ErrForbidden, "you can only remove your own fingers")
		}
		if game.Status == postgres.GameFinished {
			return ErrGameFinished
		}

		out, err = takeFinger(tx, game, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	events := []changefeed.Event{participantEvent(changefeed.Update, out.Participant)}
	if out.Finished {
		log.Info("game finished", slog.String("winner_id", out.WinnerID))
		events = append(events, gameEvent(changefeed.Update, out.Game))
	}
	events = append(events, noticeEvents(gameID, out.Notices)...)
	changefeed.Emit(ctx, s.feed, log, events...)

	return out, nil
}

// takeFinger decrements the player's fingers and settles elimination and the
// winner in the same transaction.
func takeFinger(tx *gorm.DB, game postgres.Game, userID string) (*Outcome, error) {
	var p postgres.GameParticipant
	if err := tx.Where("game_id = ? AND user_id = ?", game.ID, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, fmt.Errorf("loading participant: %w", err)
	}
	if p.IsEliminated {
		return nil, ErrEliminated
	}

	p.FingersRemaining--
	if p.FingersRemaining <= 0 {
		p.FingersRemaining = 0
		p.IsEliminated = true
	}
	if err := tx.Model(&p).Updates(map[string]any{
		"fingers_remaining": p.FingersRemaining,
		"is_eliminated":     p.IsEliminated,
	}).Error; err != nil {
		return nil, fmt.Errorf("updating participant: %w", err)
	}

	out := &Outcome{Game: game, Participant: p, Notices: []Notice{}}
	if !p.IsEliminated {
		return out, nil
	}

	names, err := displayNames(tx, []string{userID})
	if err != nil {
		return nil, err
	}
	out.Eliminated = true
	out.Notices = append(out.Notices,
		Notice{Kind: NoticeSelfEliminated, Audience: AudienceSelf, UserID: userID, Message: "You're out!"},
		Notice{Kind: NoticePlayerEliminated, Audience: AudienceAll, UserID: userID, Message: names[userID] + " is out!"},
	)

	var remaining []postgres.GameParticipant
	if err := tx.Where("game_id = ? AND is_eliminated = ?", game.ID, false).Find(&remaining).Error; err != nil {
		return nil, fmt.Errorf("counting remaining players: %w", err)
	}
	if len(remaining) > 1 {
		return out, nil
	}

	updates := map[string]any{"status": postgres.GameFinished}
	out.Game.Status = postgres.GameFinished
	if len(remaining) == 1 {
		winner := remaining[0].UserID
		updates["winner_id"] = winner
		out.Game.WinnerID = &winner
		out.WinnerID = winner

		names, err := displayNames(tx, []string{winner})
		if err != nil {
			return nil, err
		}
		out.Notices = append(out.Notices,
			Notice{Kind: NoticeWinner, Audience: AudienceAll, UserID: winner, Message: names[winner] + " wins!"})
	}
	if err := tx.Model(&postgres.Game{}).Where("id = ?", game.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("finishing game: %w", err)
	}
	out.Finished = true
	return out, nil
}

// EndGame lets the host stop a game early. There is no winner then.
func (s *Service) EndGame(ctx context.Context, callerID, gameID string) (*postgres.Game, error) {
	const op = "game.EndGame"
	log := s.log.With(slog.String("op", op), slog.String("game_id", gameID))

	var game postgres.Game
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		game, err = lockGame(tx, gameID)
		if err != nil {
			return err
		}
		if game.HostID != callerID {
			return ErrNotHost
		}
		if game.Status == postgres.GameFinished {
			return nil
		}
		game.Status = postgres.GameFinished
		changed = true
		return tx.Model(&postgres.Game{}).Where("id = ?", gameID).Update("status", postgres.GameFinished).Error
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.Info("game ended by host")
		changefeed.Emit(ctx, s.feed, log, gameEvent(changefeed.Update, game))
	}
	return &game, nil
}

func displayNames(tx *gorm.DB, userIDs []string) (map[string]string, error) {
	var profiles []postgres.Profile
	if err := tx.Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		names[id] = "A player"
	}
	for _, p := range profiles {
		if p.DisplayName != "" {
			names[p.UserID] = p.DisplayName
		}
	}
	return names, nil
}
