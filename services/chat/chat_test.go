package chat

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/config/testdb"
	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestGetOrCreateConversation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.GetOrCreateConversation(ctx, f.ana, f.ana)
	assert.ErrorIs(t, err, ErrSelfChat)

	_, err = f.svc.GetOrCreateConversation(ctx, f.ana, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	first, err := f.svc.GetOrCreateConversation(ctx, f.ana, f.ben)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreateConversation(ctx, f.ben, f.ana)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one thread per pair in either direction")

	assert.Equal(t, []string{"direct_conversations:INSERT"}, f.feed.Tables())
}

func TestSendAndHistory(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	conv, err := f.svc.GetOrCreateConversation(ctx, f.ana, f.ben)
	require.NoError(t, err)

	t.Run("content rules", func(t *testing.T) {
		_, err := f.svc.Send(ctx, f.ana, conv.ID, "   ")
		assert.ErrorIs(t, err, ErrEmptyMessage)
		_, err = f.svc.Send(ctx, f.ana, conv.ID, strings.Repeat("a", MaxMessageLength+1))
		assert.ErrorIs(t, err, ErrMessageTooLong)
		_, err = f.svc.Send(ctx, f.cleo, conv.ID, "hi")
		assert.ErrorIs(t, err, ErrNotParticipant)
	})

	msg, err := f.svc.Send(ctx, f.ana, conv.ID, "  hey  ")
	require.NoError(t, err)
	assert.Equal(t, "hey", msg.Content)

	_, err = f.svc.Send(ctx, f.ben, conv.ID, "yo")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.ana, conv.ID, "party tonight?")
	require.NoError(t, err)

	ev := f.feed.Events()
	var inserted changefeed.Event
	for _, e := range ev {
		if e.Table == TableMessages && e.Type == changefeed.Insert {
			inserted = e
			break
		}
	}
	assert.Equal(t, f.ben, inserted.Keys["recipient_id"])

	t.Run("history is ascending and marks incoming read", func(t *testing.T) {
		h, err := f.svc.History(ctx, f.ben, conv.ID, nil)
		require.NoError(t, err)
		require.Len(t, h.Days, 1)
		var contents []string
		for _, m := range h.Days[0].Messages {
			contents = append(contents, m.Content)
		}
		assert.Equal(t, []string{"hey", "yo", "party tonight?"}, contents)
		assert.EqualValues(t, 2, h.MarkedRead)
		assert.Equal(t, "Ana", h.Other.DisplayName)

		unread, err := UnreadByConversation(f.svc.db, f.ben)
		require.NoError(t, err)
		assert.Zero(t, unread[conv.ID])

		unread, err = UnreadByConversation(f.svc.db, f.ana)
		require.NoError(t, err)
		assert.EqualValues(t, 1, unread[conv.ID])
	})

	t.Run("outsiders cannot read", func(t *testing.T) {
		_, err := f.svc.History(ctx, f.cleo, conv.ID, nil)
		assert.ErrorIs(t, err, ErrNotParticipant)
	})
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.SendTo(ctx, f.ben, f.ana, "first")
	require.NoError(t, err)
	_, err = f.svc.SendTo(ctx, f.ben, f.ana, "second")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = f.svc.SendTo(ctx, f.cleo, f.ana, "hello")
	require.NoError(t, err)

	list, err := f.svc.Conversations(ctx, f.ana)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "Cleo", list[0].Other.DisplayName)
	assert.EqualValues(t, 1, list[0].Unread)
	assert.Equal(t, "Ben", list[1].Other.DisplayName)
	assert.EqualValues(t, 2, list[1].Unread)
	require.NotNil(t, list[1].LastMessage)
	assert.Equal(t, "second", list[1].LastMessage.Content)

	n, err := f.svc.MarkRead(ctx, f.ana, list[1].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err = f.svc.Conversations(ctx, f.ana)
	require.NoError(t, err)
	assert.Zero(t, list[1].Unread)

	bens, err := f.svc.Conversations(ctx, f.ben)
	require.NoError(t, err)
	assert.Len(t, bens, 1)
}

func TestMarkMessageRead(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	msg, err := f.svc.SendTo(ctx, f.ana, f.ben, "hi")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.MarkMessageRead(ctx, f.cleo, msg.ID), ErrNotParticipant)
	require.NoError(t, f.svc.MarkMessageRead(ctx, f.ana, msg.ID))

	var stored postgres.DirectMessage
	require.NoError(t, f.svc.db.First(&stored, "id = ?", msg.ID).Error)
	assert.Nil(t, stored.ReadAt, "senders do not mark their own messages")

	require.NoError(t, f.svc.MarkMessageRead(ctx, f.ben, msg.ID))
	require.NoError(t, f.svc.db.First(&stored, "id = ?", msg.ID).Error)
	assert.NotNil(t, stored.ReadAt)
}

func TestGroupChat(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	groupID := testdb.Group(t, f.svc.db, "Crew", f.ana, f.ben)

	_, err := f.svc.OpenGroupChat(ctx, f.cleo, groupID)
	assert.ErrorIs(t, err, groups.ErrNotMember)

	_, err = f.svc.OpenGroupChat(ctx, f.ana, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	conv, err := f.svc.OpenGroupChat(ctx, f.ana, groupID)
	require.NoError(t, err)
	again, err := f.svc.OpenGroupChat(ctx, f.ben, groupID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	_, err = f.svc.SendGroupMessage(ctx, f.cleo, groupID, "let me in")
	assert.ErrorIs(t, err, groups.ErrNotMember)

	sent, err := f.svc.SendGroupMessage(ctx, f.ben, groupID, "who's hosting?")
	require.NoError(t, err)
	assert.Equal(t, "Ben", sent.Sender.DisplayName)

	h, err := f.svc.GroupHistory(ctx, f.ana, groupID, time.UTC)
	require.NoError(t, err)
	require.Len(t, h.Messages, 1)
	assert.Equal(t, "who's hosting?", h.Messages[0].Content)
	assert.Equal(t, "Ben", h.Messages[0].Sender.DisplayName)
	assert.Len(t, h.Days, 1)

	last := f.feed.Events()[len(f.feed.Events())-1]
	assert.Equal(t, TableGroupMessages, last.Table)
	assert.Equal(t, groupID, last.Keys["group_id"])
}
