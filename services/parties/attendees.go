package parties

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RSVP sets the caller's status to attending or declined. Joining a party
// with max_attendees set fails once the attending rows reach it.
func (s *Service) RSVP(ctx context.Context, userID, partyID, status string) (*postgres.PartyAttendee, error) {
	const op = "parties.RSVP"

	if status != postgres.AttendeeAttending && status != postgres.AttendeeDeclined {
		return nil, ErrInvalidRSVP
	}

	var (
		row       postgres.PartyAttendee
		party     postgres.Party
		created   bool
		unchanged bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if party, err = lockParty(tx, partyID); err != nil {
			return err
		}
		if !party.IsActive {
			return ErrPartyClosed
		}
		ok, err := canSee(tx, userID, party)
		if err != nil {
			return err
		}
		if !ok {
			return errs.New(errs.ErrNotFound, "party not found")
		}

		err = tx.Where("party_id = ? AND user_id = ?", partyID, userID).First(&row).Error
		switch {
		case notFound(err):
			row = postgres.PartyAttendee{PartyID: partyID, UserID: userID}
			created = true
		case err != nil:
			return fmt.Errorf("loading rsvp: %w", err)
		case row.Status == status:
			unchanged = true
			return nil
		}

		if status == postgres.AttendeeAttending && party.MaxAttendees != nil {
			attending, err := countAttending(tx, partyID)
			if err != nil {
				return err
			}
			if attending >= int64(*party.MaxAttendees) {
				return ErrPartyFull
			}
		}

		row.Status = status
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("saving rsvp: %w", err)
		}

		attending, err := countAttending(tx, partyID)
		if err != nil {
			return err
		}
		party.CurrentAttendees = int(attending)
		return tx.Model(&party).Update("current_attendees", party.CurrentAttendees).Error
	})
	if err != nil {
		return nil, err
	}

	if unchanged {
		return &row, nil
	}

	s.log.Debug("rsvp", slog.String("op", op), slog.String("party_id", partyID), slog.String("status", status))

	evOp := changefeed.Update
	if created {
		evOp = changefeed.Insert
	}
	changefeed.Emit(ctx, s.feed, s.log,
		attendeeEvent(evOp, row),
		partyEvent(changefeed.Update, party),
	)
	return &row, nil
}

// Invite adds an invited row for each user without one. Users who already
// answered keep their status.
func (s *Service) Invite(ctx context.Context, hostID, partyID string, userIDs []string) ([]postgres.PartyAttendee, error) {
	var invited []postgres.PartyAttendee

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		party, err := loadAsHost(tx, hostID, partyID)
		if err != nil {
			return err
		}
		if !party.IsActive {
			return ErrPartyClosed
		}
		if len(userIDs) == 0 {
			return nil
		}

		var existing []string
		if err := tx.Model(&postgres.PartyAttendee{}).
			Where("party_id = ? AND user_id IN ?", partyID, userIDs).
			Pluck("user_id", &existing).Error; err != nil {
			return fmt.Errorf("loading attendees: %w", err)
		}
		skip := make(map[string]bool, len(existing))
		for _, id := range existing {
			skip[id] = true
		}

		var known []string
		if err := tx.Model(&postgres.Profile{}).Where("user_id IN ?", userIDs).Pluck("user_id", &known).Error; err != nil {
			return fmt.Errorf("loading profiles: %w", err)
		}
		isKnown := make(map[string]bool, len(known))
		for _, id := range known {
			isKnown[id] = true
		}

		for _, id := range userIDs {
			if id == hostID {
				return ErrNotInvitable
			}
			if !isKnown[id] {
				return errs.New(errs.ErrNotFound, "user not found")
			}
			if skip[id] {
				continue
			}
			skip[id] = true
			invited = append(invited, postgres.PartyAttendee{PartyID: partyID, UserID: id, Status: postgres.AttendeeInvited})
		}
		if len(invited) == 0 {
			return nil
		}
		if err := tx.Create(&invited).Error; err != nil {
			return fmt.Errorf("inviting: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]changefeed.Event, len(invited))
	for i, a := range invited {
		events[i] = attendeeEvent(changefeed.Insert, a)
	}
	changefeed.Emit(ctx, s.feed, s.log, events...)
	return invited, nil
}

// Attendees lists who is attending, oldest RSVP first.
func (s *Service) Attendees(ctx context.Context, viewerID, partyID string) ([]Attendee, error) {
	db := s.db.WithContext(ctx)

	var party postgres.Party
	if err := db.First(&party, "id = ?", partyID).Error; err != nil {
		return nil, errs.NotFoundOr(err, "party")
	}
	if ok, err := canSee(db, viewerID, party); err != nil {
		return nil, err
	} else if !ok {
		return nil, errs.New(errs.ErrNotFound, "party not found")
	}

	var rows []postgres.PartyAttendee
	if err := db.Where("party_id = ? AND status = ?", partyID, postgres.AttendeeAttending).
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing attendees: %w", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	summaries, err := profiles.Summaries(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Attendee, len(rows))
	for i, r := range rows {
		out[i] = Attendee{PartyAttendee: r, Profile: summaries[r.UserID]}
	}
	return out, nil
}

// Invitations lists the parties userID was invited to and has not answered.
func (s *Service) Invitations(ctx context.Context, userID string) ([]Listing, error) {
	db := s.db.WithContext(ctx)
	invited := db.Model(&postgres.PartyAttendee{}).
		Select("party_id").
		Where("user_id = ? AND status = ?", userID, postgres.AttendeeInvited)

	var parties []postgres.Party
	if err := db.Where("is_active = ? AND id IN (?)", true, invited).
		Order("start_time asc").
		Find(&parties).Error; err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}
	return withHosts(db, parties)
}

func countAttending(tx *gorm.DB, partyID string) (int64, error) {
	var n int64
	if err := tx.Model(&postgres.PartyAttendee{}).
		Where("party_id = ? AND status = ?", partyID, postgres.AttendeeAttending).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting attendees: %w", err)
	}
	return n, nil
}

// lockParty loads a party and holds its row until the transaction ends, so
// concurrent RSVPs count attendees one at a time.
func lockParty(tx *gorm.DB, partyID string) (postgres.Party, error) {
	var party postgres.Party
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&party, "id = ?", partyID).Error; err != nil {
		return party, errs.NotFoundOr(err, "party")
	}
	return party, nil
}
