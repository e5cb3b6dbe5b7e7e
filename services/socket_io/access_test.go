package socket_io

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Maxapelquist/preparty-social-hub/config/testdb"
	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/parties"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGames map[string]bool

func (f fakeGames) IsParticipant(_ context.Context, gameID, userID string) (bool, error) {
	return f[gameID+"/"+userID], nil
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	ana := testdb.User(t, db, "ana")
	ben := testdb.User(t, db, "ben")
	cleo := testdb.User(t, db, "cleo")
	groupID := testdb.Group(t, db, "Crew", ana, ben)

	conv := postgres.DirectConversation{UserA: ana, UserB: ben}
	require.NoError(t, db.Create(&conv).Error)

	partySvc := parties.NewService(db, changefeed.Discard{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	access := NewAccess(db, fakeGames{"g1/" + ana: true}, partySvc)

	filter := func(s string) changefeed.Filter {
		f, err := changefeed.ParseFilter(s)
		require.NoError(t, err)
		return f
	}

	allowed := []struct {
		user, table, filter string
	}{
		{cleo, "profiles", "user_id=eq." + ana},
		{ana, "friendships", "friend_id=eq." + ana},
		{ben, "direct_messages", "conversation_id=eq." + conv.ID},
		{ben, "direct_messages", "recipient_id=eq." + ben},
		{ben, "group_messages", "group_id=eq." + groupID},
		{ana, "groups", "id=eq." + groupID},
		{ana, "game_rounds", "game_id=eq.g1"},
		{ana, "games", "id=eq.g1"},
	}
	for _, tt := range allowed {
		t.Run("allow "+tt.table+" "+tt.filter, func(t *testing.T) {
			assert.NoError(t, access.Authorize(ctx, tt.user, tt.table, filter(tt.filter)))
		})
	}

	denied := []struct {
		user, table, filter string
	}{
		{cleo, "friendships", "friend_id=eq." + ana},
		{cleo, "direct_messages", "conversation_id=eq." + conv.ID},
		{cleo, "group_messages", "group_id=eq." + groupID},
		{ben, "games", "id=eq.g1"},
	}
	for _, tt := range denied {
		t.Run("deny "+tt.table+" "+tt.filter, func(t *testing.T) {
			assert.ErrorIs(t, access.Authorize(ctx, tt.user, tt.table, filter(tt.filter)), errs.ErrForbidden)
		})
	}

	assert.ErrorIs(t, access.Authorize(ctx, ana, "secrets", filter("id=eq.1")), errs.ErrValidation)
	assert.ErrorIs(t, access.Authorize(ctx, ana, "friendships", filter("status=eq.pending")), errs.ErrForbidden)
	assert.ErrorIs(t, access.Authorize(ctx, ana, "groups", filter("name=eq.Crew")), errs.ErrValidation)
	assert.ErrorIs(t, access.Authorize(ctx, ana, "direct_messages", filter("conversation_id=eq.missing")), errs.ErrNotFound)
}
