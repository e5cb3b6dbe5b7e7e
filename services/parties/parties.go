// Package parties manages hosted parties, invitations and RSVPs.
package parties

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"
	"github.com/Maxapelquist/preparty-social-hub/services/profiles"

	"gorm.io/gorm"
)

const (
	TableParties   = "parties"
	TableAttendees = "party_attendees"
)

var (
	ErrNotHost      = errs.New(errs.ErrForbidden, "only the host can do that")
	ErrPartyFull    = errs.New(errs.ErrUnprocessable, "this party is full")
	ErrPartyClosed  = errs.New(errs.ErrUnprocessable, "this party is no longer active")
	ErrInvalidRSVP  = errs.New(errs.ErrValidation, "rsvp status must be attending or declined")
	ErrNotInvitable = errs.New(errs.ErrValidation, "the host is always invited")
)

type Service struct {
	db   *gorm.DB
	feed changefeed.Publisher
	log  *slog.Logger
}

func NewService(db *gorm.DB, feed changefeed.Publisher, log *slog.Logger) *Service {
	return &Service{db: db, feed: feed, log: log.With(slog.String("service", "parties"))}
}

// Listing is a party as shown in feeds and on the map.
type Listing struct {
	postgres.Party
	HostName   string `json:"host_name"`
	HostAvatar string `json:"host_avatar"`
}

type Attendee struct {
	postgres.PartyAttendee
	Profile postgres.ProfileSummary `json:"profile"`
}

type CreateParams struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	LocationName string     `json:"location_name"`
	LocationLat  *float64   `json:"location_lat"`
	LocationLng  *float64   `json:"location_lng"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	MaxAttendees *int       `json:"max_attendees"`
	Vibe         string     `json:"vibe"`
	IsPrivate    bool       `json:"is_private"`
	GroupID      *string    `json:"group_id"`
}

func (s *Service) Create(ctx context.Context, hostID string, p CreateParams) (*postgres.Party, error) {
	const op = "parties.Create"

	party := postgres.Party{
		Title:        strings.TrimSpace(p.Title),
		Description:  strings.TrimSpace(p.Description),
		LocationName: strings.TrimSpace(p.LocationName),
		LocationLat:  p.LocationLat,
		LocationLng:  p.LocationLng,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		MaxAttendees: p.MaxAttendees,
		Vibe:         strings.TrimSpace(p.Vibe),
		IsPrivate:    p.IsPrivate,
		GroupID:      p.GroupID,
		HostID:       hostID,
		IsActive:     true,
	}
	if err := validate(party); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if party.GroupID != nil {
		if ok, err := groups.IsMember(db, *party.GroupID, hostID); err != nil {
			return nil, err
		} else if !ok {
			return nil, groups.ErrNotMember
		}
	}

	if err := db.Create(&party).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("party created", slog.String("op", op), slog.String("party_id", party.ID))
	changefeed.Emit(ctx, s.feed, s.log, partyEvent(changefeed.Insert, party))
	return &party, nil
}

type UpdateParams struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	LocationName *string    `json:"location_name"`
	LocationLat  *float64   `json:"location_lat"`
	LocationLng  *float64   `json:"location_lng"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	MaxAttendees *int       `json:"max_attendees"`
	Vibe         *string    `json:"vibe"`
	IsPrivate    *bool      `json:"is_private"`
}

func (s *Service) Update(ctx context.Context, userID, partyID string, p UpdateParams) (*postgres.Party, error) {
	var party postgres.Party

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if party, err = loadAsHost(tx, userID, partyID); err != nil {
			return err
		}

		trimInto(&party.Title, p.Title)
		trimInto(&party.Description, p.Description)
		trimInto(&party.LocationName, p.LocationName)
		trimInto(&party.Vibe, p.Vibe)
		if p.LocationLat != nil {
			party.LocationLat = p.LocationLat
		}
		if p.LocationLng != nil {
			party.LocationLng = p.LocationLng
		}
		if p.StartTime != nil {
			party.StartTime = *p.StartTime
		}
		if p.EndTime != nil {
			party.EndTime = p.EndTime
		}
		if p.MaxAttendees != nil {
			party.MaxAttendees = p.MaxAttendees
		}
		if p.IsPrivate != nil {
			party.IsPrivate = *p.IsPrivate
		}
		if party.Vibe == "" {
			party.Vibe = postgres.DefaultVibe
		}
		if err := validate(party); err != nil {
			return err
		}

		if err := tx.Save(&party).Error; err != nil {
			return fmt.Errorf("saving party: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	changefeed.Emit(ctx, s.feed, s.log, partyEvent(changefeed.Update, party))
	return &party, nil
}

// Delete hides the party. Rows are kept so attendees keep their history.
func (s *Service) Delete(ctx context.Context, userID, partyID string) error {
	var party postgres.Party

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if party, err = loadAsHost(tx, userID, partyID); err != nil {
			return err
		}
		if err := tx.Model(&party).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivating party: %w", err)
		}
		party.IsActive = false
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("party deactivated", slog.String("party_id", partyID))
	changefeed.Emit(ctx, s.feed, s.log, partyEvent(changefeed.Update, party))
	return nil
}

// Active lists the active parties viewerID may see, soonest first. Private
// parties show up only for their host, members of their group and users
// with an attendee row.
func (s *Service) Active(ctx context.Context, viewerID string) ([]Listing, error) {
	return s.listVisible(ctx, viewerID, nil)
}

type Bounds struct {
	MinLat float64 `form:"min_lat"`
	MaxLat float64 `form:"max_lat"`
	MinLng float64 `form:"min_lng"`
	MaxLng float64 `form:"max_lng"`
}

func (b Bounds) valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLng <= b.MaxLng &&
		b.MinLat >= -90 && b.MaxLat <= 90 && b.MinLng >= -180 && b.MaxLng <= 180
}

// MapOverlay is Active restricted to parties with coordinates inside b.
func (s *Service) MapOverlay(ctx context.Context, viewerID string, b Bounds) ([]Listing, error) {
	if !b.valid() {
		return nil, errs.Invalid("invalid map bounds")
	}
	return s.listVisible(ctx, viewerID, &b)
}

func (s *Service) Get(ctx context.Context, viewerID, partyID string) (*Listing, error) {
	db := s.db.WithContext(ctx)

	var party postgres.Party
	if err := db.First(&party, "id = ?", partyID).Error; err != nil {
		return nil, errs.NotFoundOr(err, "party")
	}
	ok, err := canSee(db, viewerID, party)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "party not found")
	}

	listings, err := withHosts(db, []postgres.Party{party})
	if err != nil {
		return nil, err
	}
	return &listings[0], nil
}

func (s *Service) listVisible(ctx context.Context, viewerID string, b *Bounds) ([]Listing, error) {
	db := s.db.WithContext(ctx)

	memberOf := db.Model(&postgres.GroupMember{}).Select("group_id").Where("user_id = ?", viewerID)
	attending := db.Model(&postgres.PartyAttendee{}).Select("party_id").Where("user_id = ?", viewerID)

	q := db.Where("is_active = ?", true).
		Where(
			db.Where("is_private = ?", false).
				Or("host_id = ?", viewerID).
				Or("group_id IN (?)", memberOf).
				Or("id IN (?)", attending),
		)
	if b != nil {
		q = q.Where("location_lat BETWEEN ? AND ? AND location_lng BETWEEN ? AND ?",
			b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	}

	var parties []postgres.Party
	if err := q.Order("start_time asc").Find(&parties).Error; err != nil {
		return nil, fmt.Errorf("listing parties: %w", err)
	}
	return withHosts(db, parties)
}

func canSee(db *gorm.DB, viewerID string, party postgres.Party) (bool, error) {
	if !party.IsPrivate || party.HostID == viewerID {
		return true, nil
	}
	if party.GroupID != nil {
		ok, err := groups.IsMember(db, *party.GroupID, viewerID)
		if err != nil || ok {
			return ok, err
		}
	}
	var count int64
	if err := db.Model(&postgres.PartyAttendee{}).
		Where("party_id = ? AND user_id = ?", party.ID, viewerID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking invitation: %w", err)
	}
	return count > 0, nil
}

func withHosts(db *gorm.DB, parties []postgres.Party) ([]Listing, error) {
	ids := make([]string, len(parties))
	for i, p := range parties {
		ids[i] = p.HostID
	}
	hosts, err := profiles.Summaries(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, len(parties))
	for i, p := range parties {
		h := hosts[p.HostID]
		out[i] = Listing{Party: p, HostName: h.DisplayName, HostAvatar: h.AvatarURL}
	}
	return out, nil
}

func loadAsHost(tx *gorm.DB, userID, partyID string) (postgres.Party, error) {
	var party postgres.Party
	if err := tx.First(&party, "id = ?", partyID).Error; err != nil {
		return party, errs.NotFoundOr(err, "party")
	}
	if party.HostID != userID {
		return party, ErrNotHost
	}
	return party, nil
}

func validate(p postgres.Party) error {
	switch {
	case p.Title == "":
		return errs.Invalid("party title is required")
	case p.LocationName == "":
		return errs.Invalid("party location is required")
	case p.StartTime.IsZero():
		return errs.Invalid("party start time is required")
	case p.EndTime != nil && p.EndTime.Before(p.StartTime):
		return errs.Invalid("a party cannot end before it starts")
	case p.MaxAttendees != nil && *p.MaxAttendees < 1:
		return errs.Invalid("max attendees must be at least 1")
	case (p.LocationLat == nil) != (p.LocationLng == nil):
		return errs.Invalid("location needs both latitude and longitude")
	}
	return nil
}

func trimInto(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func partyEvent(op changefeed.Op, p postgres.Party) changefeed.Event {
	return changefeed.New(TableParties, op, p, map[string]string{
		"id":      p.ID,
		"host_id": p.HostID,
	})
}

func attendeeEvent(op changefeed.Op, a postgres.PartyAttendee) changefeed.Event {
	return changefeed.New(TableAttendees, op, a, map[string]string{
		"id":       a.ID,
		"party_id": a.PartyID,
		"user_id":  a.UserID,
	})
}
