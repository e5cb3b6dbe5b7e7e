// Package game runs "Never Have I Ever" sessions. Every state change of a
// game happens inside one database transaction with the game row locked.
package game

import (
	"context"
	"log/slog"
	"math/rand/v2"

	redis_models "github.com/Maxapelquist/preparty-social-hub/models/redis"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"gorm.io/gorm"
)

const DefaultTitle = "Never Have I Ever"

var (
	ErrNoGroupsSelected  = errs.New(errs.ErrValidation, "select at least one group")
	ErrNotEnoughPlayers  = errs.New(errs.ErrValidation, "a game needs at least two players")
	ErrNotHost           = errs.New(errs.ErrForbidden, "only the host can do that")
	ErrNotParticipant    = errs.New(errs.ErrForbidden, "you are not playing in this game")
	ErrNotGroupMember    = errs.New(errs.ErrForbidden, "you are not a member of every selected group")
	ErrGameFinished      = errs.New(errs.ErrUnprocessable, "the game is over")
	ErrNoMoreQuestions   = errs.New(errs.ErrUnprocessable, "no more questions available")
	ErrNoActiveRound     = errs.New(errs.ErrUnprocessable, "no question has been asked yet")
	ErrEliminated        = errs.New(errs.ErrUnprocessable, "that player is already out")
	ErrConcurrentAdvance = errs.New(errs.ErrConflict, "the round was already advanced")
	ErrAlreadyAnswered   = errs.New(errs.ErrConflict, "you already answered this round")
	ErrStaleRound        = errs.New(errs.ErrConflict, "that round is over")
)

// AnswerLog remembers who answered which round. The first answer sticks.
type AnswerLog interface {
	RecordAnswer(ctx context.Context, gameID string, round int, answer redis_models.RoundAnswer) (bool, error)
	RoundAnswer(ctx context.Context, gameID string, round int, userID string) (*redis_models.RoundAnswer, error)
	ForgetAnswer(ctx context.Context, gameID string, round int, userID string) error
}

type Service struct {
	db      *gorm.DB
	answers AnswerLog
	feed    changefeed.Publisher
	log     *slog.Logger
	pick    func(n int) int
}

func NewService(db *gorm.DB, answers AnswerLog, feed changefeed.Publisher, log *slog.Logger) *Service {
	return &Service{
		db:      db,
		answers: answers,
		feed:    feed,
		log:     log.With(slog.String("service", "game")),
		pick:    rand.IntN,
	}
}

// WithPicker replaces the uniform question draw. pick(n) must return a
// value in [0, n).
func (s *Service) WithPicker(pick func(n int) int) *Service {
	s.pick = pick
	return s
}
