package game

import (
	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
)

const (
	TableGames        = "games"
	TableParticipants = "game_participants"
	TableRounds       = "game_rounds"
	TableNotices      = "game_notices"
	TableAnswers      = "game_answers"
)

func gameEvent(op changefeed.Op, g postgres.Game) changefeed.Event {
	return changefeed.New(TableGames, op, g, map[string]string{
		"id":      g.ID,
		"host_id": g.HostID,
	})
}

func participantEvent(op changefeed.Op, p postgres.GameParticipant) changefeed.Event {
	return changefeed.New(TableParticipants, op, p, map[string]string{
		"id":      p.ID,
		"game_id": p.GameID,
		"user_id": p.UserID,
	})
}

func roundEvent(op changefeed.Op, r postgres.GameRound) changefeed.Event {
	return changefeed.New(TableRounds, op, r, map[string]string{
		"id":      r.ID,
		"game_id": r.GameID,
	})
}

func noticeEvents(gameID string, notices []Notice) []changefeed.Event {
	events := make([]changefeed.Event, 0, len(notices))
	for _, n := range notices {
		if n.Audience != AudienceAll {
			continue
		}
		events = append(events, changefeed.New(TableNotices, changefeed.Broadcast, n, map[string]string{
			"game_id": gameID,
		}))
	}
	return events
}
