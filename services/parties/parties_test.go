package parties

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/config/testdb"
	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc            *Service
	feed           *changefeed.Recorder
	ana, ben, cleo string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	f := &fixture{feed: &changefeed.Recorder{}}
	f.svc = NewService(db, f.feed, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.ana = testdb.User(t, db, "ana")
	f.ben = testdb.User(t, db, "ben")
	f.cleo = testdb.User(t, db, "cleo")
	return f
}

func params(title string, start time.Time) CreateParams {
	return CreateParams{Title: title, LocationName: "Rooftop", StartTime: start}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	start := time.Now().Add(24 * time.Hour)

	t.Run("required fields", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.ana, CreateParams{LocationName: "x", StartTime: start})
		assert.ErrorIs(t, err, errs.ErrValidation)
		_, err = f.svc.Create(ctx, f.ana, CreateParams{Title: "x", StartTime: start})
		assert.ErrorIs(t, err, errs.ErrValidation)
		_, err = f.svc.Create(ctx, f.ana, CreateParams{Title: "x", LocationName: "x"})
		assert.ErrorIs(t, err, errs.ErrValidation)

		p := params("x", start)
		p.EndTime = ptr(start.Add(-time.Hour))
		_, err = f.svc.Create(ctx, f.ana, p)
		assert.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("defaults", func(t *testing.T) {
		party, err := f.svc.Create(ctx, f.ana, params(" Launch ", start))
		require.NoError(t, err)
		assert.Equal(t, "Launch", party.Title)
		assert.Equal(t, postgres.DefaultVibe, party.Vibe)
		assert.True(t, party.IsActive)
		assert.Equal(t, []string{"parties:INSERT"}, f.feed.Tables())
	})

	t.Run("group parties need a member host", func(t *testing.T) {
		groupID := testdb.Group(t, f.svc.db, "Crew", f.ben)
		p := params("Crew night", start)
		p.GroupID = &groupID
		_, err := f.svc.Create(ctx, f.ana, p)
		assert.ErrorIs(t, err, groups.ErrNotMember)
	})
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	start := time.Now().Add(time.Hour)

	public, err := f.svc.Create(ctx, f.ana, params("Public", start.Add(2*time.Hour)))
	require.NoError(t, err)

	groupID := testdb.Group(t, f.svc.db, "Crew", f.ana, f.ben)
	p := params("Crew only", start.Add(time.Hour))
	p.IsPrivate = true
	p.GroupID = &groupID
	crewOnly, err := f.svc.Create(ctx, f.ana, p)
	require.NoError(t, err)

	p = params("Secret", start)
	p.IsPrivate = true
	secret, err := f.svc.Create(ctx, f.ana, p)
	require.NoError(t, err)

	titles := func(list []Listing) []string {
		out := make([]string, len(list))
		for i, l := range list {
			out[i] = l.Title
		}
		return out
	}

	host, err := f.svc.Active(ctx, f.ana)
	require.NoError(t, err)
	assert.Equal(t, []string{"Secret", "Crew only", "Public"}, titles(host))
	assert.Equal(t, "Ana", host[0].HostName)

	member, err := f.svc.Active(ctx, f.ben)
	require.NoError(t, err)
	assert.Equal(t, []string{"Crew only", "Public"}, titles(member))

	outsider, err := f.svc.Active(ctx, f.cleo)
	require.NoError(t, err)
	assert.Equal(t, []string{"Public"}, titles(outsider))

	_, err = f.svc.Get(ctx, f.cleo, crewOnly.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.Invite(ctx, f.ana, secret.ID, []string{f.cleo})
	require.NoError(t, err)
	invited, err := f.svc.Active(ctx, f.cleo)
	require.NoError(t, err)
	assert.Equal(t, []string{"Secret", "Public"}, titles(invited))

	require.ErrorIs(t, f.svc.Delete(ctx, f.ben, public.ID), ErrNotHost)
	require.NoError(t, f.svc.Delete(ctx, f.ana, public.ID))
	after, err := f.svc.Active(ctx, f.cleo)
	require.NoError(t, err)
	assert.Equal(t, []string{"Secret"}, titles(after))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	party, err := f.svc.Create(ctx, f.ana, params("Launch", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.ben, party.ID, UpdateParams{Title: ptr("Mine now")})
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = f.svc.Update(ctx, f.ana, party.ID, UpdateParams{Title: ptr(" ")})
	assert.ErrorIs(t, err, errs.ErrValidation)

	updated, err := f.svc.Update(ctx, f.ana, party.ID, UpdateParams{Vibe: ptr("Chill"), MaxAttendees: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, "Chill", updated.Vibe)
	assert.Equal(t, 10, *updated.MaxAttendees)
	assert.Equal(t, "Launch", updated.Title)
}

func TestRSVP(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	p := params("Small", time.Now().Add(time.Hour))
	p.MaxAttendees = ptr(1)
	party, err := f.svc.Create(ctx, f.ana, p)
	require.NoError(t, err)

	_, err = f.svc.RSVP(ctx, f.ben, party.ID, postgres.AttendeeInvited)
	assert.ErrorIs(t, err, ErrInvalidRSVP)

	row, err := f.svc.RSVP(ctx, f.ben, party.ID, postgres.AttendeeAttending)
	require.NoError(t, err)
	assert.Equal(t, postgres.AttendeeAttending, row.Status)

	_, err = f.svc.RSVP(ctx, f.cleo, party.ID, postgres.AttendeeAttending)
	assert.ErrorIs(t, err, ErrPartyFull)

	again, err := f.svc.RSVP(ctx, f.ben, party.ID, postgres.AttendeeAttending)
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)

	attendees, err := f.svc.Attendees(ctx, f.cleo, party.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, "Ben", attendees[0].Profile.DisplayName)

	listing, err := f.svc.Get(ctx, f.cleo, party.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, listing.CurrentAttendees)

	_, err = f.svc.RSVP(ctx, f.ben, party.ID, postgres.AttendeeDeclined)
	require.NoError(t, err)
	_, err = f.svc.RSVP(ctx, f.cleo, party.ID, postgres.AttendeeAttending)
	require.NoError(t, err, "a declined seat frees capacity")

	require.NoError(t, f.svc.Delete(ctx, f.ana, party.ID))
	_, err = f.svc.RSVP(ctx, f.ben, party.ID, postgres.AttendeeAttending)
	assert.ErrorIs(t, err, ErrPartyClosed)
}

func TestInvite(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	party, err := f.svc.Create(ctx, f.ana, params("Launch", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, f.ben, party.ID, []string{f.cleo})
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = f.svc.Invite(ctx, f.ana, party.ID, []string{f.ana})
	assert.ErrorIs(t, err, ErrNotInvitable)

	_, err = f.svc.Invite(ctx, f.ana, party.ID, []string{"missing"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.RSVP(ctx, f.ben, party.ID, postgres.AttendeeDeclined)
	require.NoError(t, err)

	invited, err := f.svc.Invite(ctx, f.ana, party.ID, []string{f.ben, f.cleo, f.cleo})
	require.NoError(t, err)
	require.Len(t, invited, 1)
	assert.Equal(t, f.cleo, invited[0].UserID)
	assert.Equal(t, postgres.AttendeeInvited, invited[0].Status)

	mine, err := f.svc.Invitations(ctx, f.cleo)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, party.ID, mine[0].ID)

	none, err := f.svc.Invitations(ctx, f.ben)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMapOverlay(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	start := time.Now().Add(time.Hour)

	p := params("Inside", start)
	p.LocationLat, p.LocationLng = ptr(59.33), ptr(18.06)
	_, err := f.svc.Create(ctx, f.ana, p)
	require.NoError(t, err)

	p = params("Outside", start)
	p.LocationLat, p.LocationLng = ptr(48.85), ptr(2.35)
	_, err = f.svc.Create(ctx, f.ana, p)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.ana, params("Nowhere", start))
	require.NoError(t, err)

	_, err = f.svc.MapOverlay(ctx, f.ben, Bounds{MinLat: 60, MaxLat: 59})
	assert.ErrorIs(t, err, errs.ErrValidation)

	got, err := f.svc.MapOverlay(ctx, f.ben, Bounds{MinLat: 59, MaxLat: 60, MinLng: 17, MaxLng: 19})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Inside", got[0].Title)
}

func TestRSVPLocksParty(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(pgdriver.New(pgdriver.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "parties" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	svc := NewService(db, &changefeed.Recorder{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = svc.RSVP(context.Background(), "u1", "p1", postgres.AttendeeAttending)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
