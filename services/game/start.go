package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"gorm.io/gorm"
)

type StartParams struct {
	HostID   string
	GroupIDs []string
	Title    string
	PartyID  *string
}

// StartGame seats every member of the selected groups, once each. Seats
// follow the order of the groups and, inside a group, the join order.
func (s *Service) StartGame(ctx context.Context, p StartParams) (*postgres.Game, []postgres.GameParticipant, error) {
	const op = "game.StartGame"
	log := s.log.With(slog.String("op", op), slog.String("host_id", p.HostID))

	if len(p.GroupIDs) == 0 {
		return nil, nil, ErrNoGroupsSelected
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = DefaultTitle
	}

	var game postgres.Game
	var participants []postgres.GameParticipant

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		players, err := seatPlayers(tx, p.HostID, p.GroupIDs)
		if err != nil {
			return err
		}
		if len(players) < 2 {
			return ErrNotEnoughPlayers
		}

		if p.PartyID != nil {
			var party postgres.Party
			if err := tx.Where("id = ? AND is_active = ?", *p.PartyID, true).First(&party).Error; err != nil {
				return errs.NotFoundOr(err, "party")
			}
		}

		game = postgres.Game{
			HostID:     p.HostID,
			Title:      title,
			Status:     postgres.GameWaiting,
			MaxFingers: postgres.DefaultMaxFingers,
			PartyID:    p.PartyID,
		}
		if err := tx.Create(&game).Error; err != nil {
			return fmt.Errorf("creating game: %w", err)
		}

		participants = make([]postgres.GameParticipant, len(players))
		for i, userID := range players {
			participants[i] = postgres.GameParticipant{
				GameID:           game.ID,
				UserID:           userID,
				Seat:             i,
				FingersRemaining: game.MaxFingers,
			}
		}
		if err := tx.Create(&participants).Error; err != nil {
			return fmt.Errorf("creating participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info("game created", slog.String("game_id", game.ID), slog.Int("players", len(participants)))

	events := []changefeed.Event{gameEvent(changefeed.Insert, game)}
	for _, pt := range participants {
		events = append(events, participantEvent(changefeed.Insert, pt))
	}
	changefeed.Emit(ctx, s.feed, log, events...)

	return &game, participants, nil
}

// seatPlayers returns the distinct members of the groups in seating order.
// The host has to belong to every group.
func seatPlayers(tx *gorm.DB, hostID string, groupIDs []string) ([]string, error) {
	seen := make(map[string]bool)
	seenGroup := make(map[string]bool)
	var players []string

	for _, groupID := range groupIDs {
		if seenGroup[groupID] {
			continue
		}
		seenGroup[groupID] = true

		var members []postgres.GroupMember
		if err := tx.Where("group_id = ?", groupID).Order("joined_at asc").Find(&members).Error; err != nil {
			return nil, fmt.Errorf("loading members of group %s: %w", groupID, err)
		}

		isMember := false
		for _, m := range members {
			if m.UserID == hostID {
				isMember = true
				break
			}
		}
		if !isMember {
			return nil, ErrNotGroupMember
		}

		for _, m := range members {
			if !seen[m.UserID] {
				seen[m.UserID] = true
				players = append(players, m.UserID)
			}
		}
	}
	return players, nil
}
