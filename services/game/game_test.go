package game

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Maxapelquist/preparty-social-hub/config/testdb"
	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	redis_models "github.com/Maxapelquist/preparty-social-hub/models/redis"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memAnswers struct {
	mu      sync.Mutex
	answers map[string]redis_models.RoundAnswer
}

func newMemAnswers() *memAnswers {
	return &memAnswers{answers: make(map[string]redis_models.RoundAnswer)}
}

func answerKey(gameID string, round int, userID string) string {
	return fmt.Sprintf("%s:%d:%s", gameID, round, userID)
}

func (m *memAnswers) RecordAnswer(_ context.Context, gameID string, round int, a redis_models.RoundAnswer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := answerKey(gameID, round, a.UserID)
	if _, ok := m.answers[k]; ok {
		return false, nil
	}
	m.answers[k] = a
	return true, nil
}

func (m *memAnswers) RoundAnswer(_ context.Context, gameID string, round int, userID string) (*redis_models.RoundAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[answerKey(gameID, round, userID)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memAnswers) ForgetAnswer(_ context.Context, gameID string, round int, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.answers, answerKey(gameID, round, userID))
	return nil
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	feed      *changefeed.Recorder
	host      string
	ana       string
	ben       string
	groupA    string
	groupB    string
	questions []string
}

func setup(t *testing.T, questions int) *fixture {
	t.Helper()
	db := testdb.New(t)
	feed := &changefeed.Recorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{db: db, feed: feed}
	f.svc = NewService(db, newMemAnswers(), feed, log)
	f.host = testdb.User(t, db, "host")
	f.ana = testdb.User(t, db, "ana")
	f.ben = testdb.User(t, db, "ben")
	f.groupA = testdb.Group(t, db, "Flatmates", f.host, f.ana)
	f.groupB = testdb.Group(t, db, "Football", f.host, f.ben, f.ana)
	f.questions = testdb.Questions(t, db, questions)
	return f
}

func (f *fixture) start(t *testing.T, groups ...string) postgres.Game {
	t.Helper()
	game, _, err := f.svc.StartGame(context.Background(), StartParams{HostID: f.host, GroupIDs: groups})
	require.NoError(t, err)
	return *game
}

func (f *fixture) participant(t *testing.T, gameID, userID string) postgres.GameParticipant {
	t.Helper()
	var p postgres.GameParticipant
	require.NoError(t, f.db.Where("game_id = ? AND user_id = ?", gameID, userID).First(&p).Error)
	return p
}

func (f *fixture) game(t *testing.T, gameID string) postgres.Game {
	t.Helper()
	var g postgres.Game
	require.NoError(t, f.db.First(&g, "id = ?", gameID).Error)
	return g
}

func TestStartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a group", func(t *testing.T) {
		f := setup(t, 1)
		_, _, err := f.svc.StartGame(ctx, StartParams{HostID: f.host})
		assert.ErrorIs(t, err, ErrNoGroupsSelected)
	})

	t.Run("host must belong to every group", func(t *testing.T) {
		f := setup(t, 1)
		other := testdb.Group(t, f.db, "Not mine", f.ben, f.ana)
		_, _, err := f.svc.StartGame(ctx, StartParams{HostID: f.host, GroupIDs: []string{f.groupA, other}})
		assert.ErrorIs(t, err, ErrNotGroupMember)
	})

	t.Run("needs two players", func(t *testing.T) {
		f := setup(t, 1)
		solo := testdb.Group(t, f.db, "Just me", f.host)
		_, _, err := f.svc.StartGame(ctx, StartParams{HostID: f.host, GroupIDs: []string{solo}})
		assert.ErrorIs(t, err, ErrNotEnoughPlayers)

		var count int64
		f.db.Model(&postgres.Game{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("seats distinct members in group then join order", func(t *testing.T) {
		f := setup(t, 1)
		game, participants, err := f.svc.StartGame(ctx, StartParams{
			HostID:   f.host,
			GroupIDs: []string{f.groupB, f.groupA, f.groupB},
		})
		require.NoError(t, err)

		assert.Equal(t, postgres.GameWaiting, game.Status)
		assert.Equal(t, DefaultTitle, game.Title)
		assert.Equal(t, 5, game.MaxFingers)
		assert.Zero(t, game.CurrentRound)

		require.Len(t, participants, 3)
		var order []string
		for i, p := range participants {
			assert.Equal(t, i, p.Seat)
			assert.Equal(t, 5, p.FingersRemaining)
			assert.False(t, p.IsEliminated)
			order = append(order, p.UserID)
		}
		assert.Equal(t, []string{f.host, f.ben, f.ana}, order)

		assert.Equal(t, []string{
			"games:INSERT",
			"game_participants:INSERT",
			"game_participants:INSERT",
			"game_participants:INSERT",
		}, f.feed.Tables())
	})
}

func TestNextPlayer(t *testing.T) {
	seats := func(eliminated ...bool) []postgres.GameParticipant {
		out := make([]postgres.GameParticipant, len(eliminated))
		for i, e := range eliminated {
			out[i] = postgres.GameParticipant{UserID: fmt.Sprintf("u%d", i), Seat: i, IsEliminated: e}
		}
		return out
	}
	ptr := func(s string) *string { return &s }

	tests := []struct {
		name         string
		participants []postgres.GameParticipant
		current      *string
		want         string
		ok           bool
	}{
		{"first round starts at first seat", seats(false, false, false), nil, "u0", true},
		{"first round skips eliminated", seats(true, false, false), nil, "u1", true},
		{"successor", seats(false, false, false), ptr("u0"), "u1", true},
		{"wraps around", seats(false, false, false), ptr("u2"), "u0", true},
		{"skips eliminated successor", seats(false, true, false), ptr("u0"), "u2", true},
		{"eliminated holder passes to the next seat", seats(false, true, false), ptr("u1"), "u2", true},
		{"eliminated holder at the end wraps", seats(false, false, true), ptr("u2"), "u0", true},
		{"unknown holder restarts", seats(false, false), ptr("ghost"), "u0", true},
		{"nobody left", seats(true, true), ptr("u0"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextPlayer(tt.participants, tt.current)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.UserID)
		})
	}
}

func TestAdvanceRound(t *testing.T) {
	ctx := context.Background()

	t.Run("only the host advances", func(t *testing.T) {
		f := setup(t, 3)
		game := f.start(t, f.groupA)
		_, err := f.svc.AdvanceRound(ctx, f.ana, game.ID)
		assert.ErrorIs(t, err, ErrNotHost)
	})

	t.Run("rotates players and never repeats a question", func(t *testing.T) {
		f := setup(t, 3)
		game := f.start(t, f.groupA, f.groupB)

		asked := map[string]bool{}
		var players []string
		for i := 1; i <= 3; i++ {
			res, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
			require.NoError(t, err)

			assert.Equal(t, i, res.Round.RoundNumber)
			assert.Equal(t, i, res.Game.CurrentRound)
			assert.Equal(t, postgres.GameActive, res.Game.Status)
			assert.Equal(t, res.Question.ID, *res.Game.CurrentQuestionID)
			assert.Equal(t, res.Player.UserID, *res.Game.CurrentPlayerTurn)
			assert.Equal(t, res.Player.UserID, res.Round.AskedBy)
			assert.Empty(t, postgres.DecodeList(res.Round.ParticipantsWhoDid))

			assert.False(t, asked[res.Question.ID], "question repeated")
			asked[res.Question.ID] = true
			players = append(players, res.Player.UserID)
		}
		assert.Equal(t, []string{f.host, f.ana, f.ben}, players)
	})

	t.Run("empty pool leaves the game untouched", func(t *testing.T) {
		f := setup(t, 1)
		game := f.start(t, f.groupA)

		_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)
		before := f.game(t, game.ID)

		_, err = f.svc.AdvanceRound(ctx, f.host, game.ID)
		assert.ErrorIs(t, err, ErrNoMoreQuestions)

		after := f.game(t, game.ID)
		assert.Equal(t, before.CurrentRound, after.CurrentRound)
		assert.Equal(t, *before.CurrentQuestionID, *after.CurrentQuestionID)

		var rounds int64
		f.db.Model(&postgres.GameRound{}).Where("game_id = ?", game.ID).Count(&rounds)
		assert.EqualValues(t, 1, rounds)
	})

	t.Run("draws from the whole unused pool", func(t *testing.T) {
		f := setup(t, 60)
		game := f.start(t, f.groupA)

		var seen []int
		f.svc.WithPicker(func(n int) int {
			seen = append(seen, n)
			return n - 1
		})

		_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)
		_, err = f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)

		assert.Equal(t, []int{60, 59}, seen)
	})

	t.Run("missing game", func(t *testing.T) {
		f := setup(t, 1)
		_, err := f.svc.AdvanceRound(ctx, f.host, "nope")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "game not found")
	})
}

func TestBumpRoundRejectsStaleRound(t *testing.T) {
	f := setup(t, 2)
	game := f.start(t, f.groupA)
	ctx := context.Background()

	_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
	require.NoError(t, err)

	// game still holds the round number read before the advance above
	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := bumpRound(tx, game, f.questions[0], f.ana)
		return err
	})
	assert.ErrorIs(t, err, ErrConcurrentAdvance)

	var rounds int64
	f.db.Model(&postgres.GameRound{}).Where("game_id = ?", game.ID).Count(&rounds)
	assert.EqualValues(t, 1, rounds)
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("before the first question", func(t *testing.T) {
		f := setup(t, 2)
		game := f.start(t, f.groupA)
		_, err := f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, DidIt: true})
		assert.ErrorIs(t, err, ErrNoActiveRound)
	})

	t.Run("outsiders cannot answer", func(t *testing.T) {
		f := setup(t, 2)
		game := f.start(t, f.groupA)
		_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)

		_, err = f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ben, DidIt: true})
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	t.Run("never costs nothing and counts as an answer", func(t *testing.T) {
		f := setup(t, 2)
		game := f.start(t, f.groupA)
		_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)

		out, err := f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, DidIt: false})
		require.NoError(t, err)
		assert.Equal(t, 5, out.Participant.FingersRemaining)

		_, err = f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, DidIt: true})
		assert.ErrorIs(t, err, ErrAlreadyAnswered)
		assert.Equal(t, 5, f.participant(t, game.ID, f.ana).FingersRemaining)
	})

	t.Run("have costs exactly one finger per round", func(t *testing.T) {
		f := setup(t, 2)
		game := f.start(t, f.groupA)
		res, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)

		out, err := f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, Round: 1, DidIt: true})
		require.NoError(t, err)
		assert.Equal(t, 4, out.Participant.FingersRemaining)
		assert.False(t, out.Eliminated)
		assert.Empty(t, out.Notices)

		_, err = f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, DidIt: true})
		assert.ErrorIs(t, err, ErrAlreadyAnswered)
		assert.Equal(t, 4, f.participant(t, game.ID, f.ana).FingersRemaining)

		var round postgres.GameRound
		require.NoError(t, f.db.First(&round, "id = ?", res.Round.ID).Error)
		assert.Equal(t, []string{f.ana}, postgres.DecodeList(round.ParticipantsWhoDid))

		mine, err := f.svc.MyAnswer(ctx, game.ID, 1, f.ana)
		require.NoError(t, err)
		require.NotNil(t, mine)
		assert.True(t, mine.DidIt)
	})

	t.Run("stale round", func(t *testing.T) {
		f := setup(t, 2)
		game := f.start(t, f.groupA)
		for i := 0; i < 2; i++ {
			_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
			require.NoError(t, err)
		}
		_, err := f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, Round: 1, DidIt: true})
		assert.ErrorIs(t, err, ErrStaleRound)
	})
}

func TestEliminationAndWinner(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 5)
	game := f.start(t, f.groupA)

	for i := 0; i < 4; i++ {
		out, err := f.svc.RemoveFinger(ctx, f.host, game.ID, f.ana)
		require.NoError(t, err)
		assert.Equal(t, 4-i, out.Participant.FingersRemaining)
	}

	_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
	require.NoError(t, err)

	out, err := f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, DidIt: true})
	require.NoError(t, err)

	assert.True(t, out.Eliminated)
	assert.True(t, out.Finished)
	assert.Equal(t, f.host, out.WinnerID)
	assert.Zero(t, out.Participant.FingersRemaining)
	assert.True(t, out.Participant.IsEliminated)

	kinds := []string{}
	for _, n := range out.Notices {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, []string{NoticeSelfEliminated, NoticePlayerEliminated, NoticeWinner}, kinds)
	assert.Equal(t, "Ana is out!", out.Notices[1].Message)
	assert.Equal(t, "Host wins!", out.Notices[2].Message)

	stored := f.game(t, game.ID)
	assert.Equal(t, postgres.GameFinished, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, f.host, *stored.WinnerID)

	_, err = f.svc.AdvanceRound(ctx, f.host, game.ID)
	assert.ErrorIs(t, err, ErrGameFinished)
	_, err = f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.host, DidIt: true})
	assert.ErrorIs(t, err, ErrGameFinished)
	_, err = f.svc.RemoveFinger(ctx, f.host, game.ID, f.host)
	assert.ErrorIs(t, err, ErrGameFinished)

	tables := f.feed.Tables()
	assert.Contains(t, tables, "game_notices:BROADCAST")
	assert.Contains(t, tables, "games:UPDATE")
}

func TestRemoveFinger(t *testing.T) {
	ctx := context.Background()

	t.Run("players only remove their own", func(t *testing.T) {
		f := setup(t, 1)
		game := f.start(t, f.groupB)

		_, err := f.svc.RemoveFinger(ctx, f.ana, game.ID, f.ben)
		assert.Error(t, err)
		assert.Equal(t, 5, f.participant(t, game.ID, f.ben).FingersRemaining)

		out, err := f.svc.RemoveFinger(ctx, f.ben, game.ID, f.ben)
		require.NoError(t, err)
		assert.Equal(t, 4, out.Participant.FingersRemaining)
	})

	t.Run("eliminated players are left alone", func(t *testing.T) {
		f := setup(t, 1)
		game := f.start(t, f.groupB)
		for i := 0; i < 5; i++ {
			_, err := f.svc.RemoveFinger(ctx, f.host, game.ID, f.ben)
			require.NoError(t, err)
		}
		assert.True(t, f.participant(t, game.ID, f.ben).IsEliminated)
		assert.Equal(t, postgres.GameWaiting, f.game(t, game.ID).Status)

		_, err := f.svc.RemoveFinger(ctx, f.host, game.ID, f.ben)
		assert.ErrorIs(t, err, ErrEliminated)
		assert.Zero(t, f.participant(t, game.ID, f.ben).FingersRemaining)
	})

	t.Run("eliminated turn holder passes the turn on", func(t *testing.T) {
		f := setup(t, 3)
		game := f.start(t, f.groupB) // host, ben, ana

		_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)
		res, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)
		require.Equal(t, f.ben, res.Player.UserID)

		for i := 0; i < 5; i++ {
			_, err := f.svc.RemoveFinger(ctx, f.host, game.ID, f.ben)
			require.NoError(t, err)
		}

		res, err = f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)
		assert.Equal(t, f.ana, res.Player.UserID)
	})

	t.Run("last removal with two players finishes the game", func(t *testing.T) {
		f := setup(t, 1)
		game := f.start(t, f.groupA) // host, ana

		var out *Outcome
		for i := 0; i < 5; i++ {
			var err error
			out, err = f.svc.RemoveFinger(ctx, f.host, game.ID, f.ana)
			require.NoError(t, err)
			if i < 4 {
				assert.False(t, out.Finished)
			}
		}

		assert.True(t, out.Eliminated)
		assert.True(t, out.Finished)
		assert.Equal(t, f.host, out.WinnerID)
		assert.Equal(t, postgres.GameFinished, out.Game.Status)

		stored := f.game(t, game.ID)
		assert.Equal(t, postgres.GameFinished, stored.Status)
		require.NotNil(t, stored.WinnerID)
		assert.Equal(t, f.host, *stored.WinnerID)

		_, err := f.svc.RemoveFinger(ctx, f.host, game.ID, f.host)
		assert.ErrorIs(t, err, ErrGameFinished)
	})
}

func TestFingersLostMatchRoundLists(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 4)
	game := f.start(t, f.groupB) // host, ben, ana

	answers := [][3]bool{
		{true, true, false},
		{true, false, false},
		{false, true, true},
		{true, true, true},
	}
	for _, row := range answers {
		_, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
		require.NoError(t, err)
		for i, user := range []string{f.host, f.ben, f.ana} {
			_, err := f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: user, DidIt: row[i]})
			require.NoError(t, err)
		}
		// a second answer never costs another finger
		_, err = f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.host, DidIt: true})
		assert.ErrorIs(t, err, ErrAlreadyAnswered)
	}

	var participants []postgres.GameParticipant
	require.NoError(t, f.db.Where("game_id = ?", game.ID).Find(&participants).Error)
	lost := 0
	for _, p := range participants {
		lost += game.MaxFingers - p.FingersRemaining
	}

	var rounds []postgres.GameRound
	require.NoError(t, f.db.Where("game_id = ?", game.ID).Find(&rounds).Error)
	require.Len(t, rounds, len(answers))
	did := 0
	for _, r := range rounds {
		did += len(postgres.DecodeList(r.ParticipantsWhoDid))
	}

	assert.Equal(t, 8, lost)
	assert.Equal(t, lost, did)
}

func TestEndGame(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 1)
	game := f.start(t, f.groupA)

	_, err := f.svc.EndGame(ctx, f.ana, game.ID)
	assert.ErrorIs(t, err, ErrNotHost)

	ended, err := f.svc.EndGame(ctx, f.host, game.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.GameFinished, ended.Status)
	assert.Nil(t, ended.WinnerID)

	again, err := f.svc.EndGame(ctx, f.host, game.ID)
	require.NoError(t, err)
	assert.Equal(t, postgres.GameFinished, again.Status)
}

func TestState(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 2)
	game := f.start(t, f.groupA)

	res, err := f.svc.AdvanceRound(ctx, f.host, game.ID)
	require.NoError(t, err)
	_, err = f.svc.Answer(ctx, AnswerParams{GameID: game.ID, UserID: f.ana, DidIt: true})
	require.NoError(t, err)

	st, err := f.svc.State(ctx, f.ana, game.ID)
	require.NoError(t, err)

	require.Len(t, st.Participants, 2)
	assert.Equal(t, "Host", st.Participants[0].DisplayName)
	assert.Equal(t, "Ana", st.Participants[1].DisplayName)
	require.NotNil(t, st.CurrentQuestion)
	assert.Equal(t, res.Question.ID, st.CurrentQuestion.ID)
	require.Len(t, st.Rounds, 1)
	assert.Equal(t, []string{f.ana}, st.Rounds[0].ParticipantsWhoDid)
	require.NotNil(t, st.MyAnswer)
	assert.True(t, st.MyAnswer.DidIt)
	assert.Nil(t, st.Winner)

	_, err = f.svc.State(ctx, f.ben, game.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	games, err := f.svc.ListGames(ctx, f.ana)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, game.ID, games[0].ID)
}

func TestQuestions(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)

	n, err := SeedQuestions(ctx, f.db)
	require.NoError(t, err)
	assert.Positive(t, n)

	again, err := SeedQuestions(ctx, f.db)
	require.NoError(t, err)
	assert.Zero(t, again)

	q, err := f.svc.SubmitQuestion(ctx, f.ana, "Party", "  kissed a stranger ")
	require.NoError(t, err)
	assert.Equal(t, "party", q.Category)
	assert.Equal(t, "Never have I ever kissed a stranger", q.Question)
	assert.Equal(t, f.ana, *q.SubmittedBy)

	_, err = f.svc.SubmitQuestion(ctx, f.ana, "", "   ")
	assert.Error(t, err)

	party, err := f.svc.ListQuestions(ctx, "party")
	require.NoError(t, err)
	assert.Len(t, party, len(defaultQuestions["party"])+1)
}
