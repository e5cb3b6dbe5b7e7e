package socket_io

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"
	"github.com/Maxapelquist/preparty-social-hub/services/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/zishang520/socket.io/v2/socket"
)

type emitted struct {
	rooms []string
	event string
	data  any
}

type fakeCounts map[string]notifications.Counts

func (f fakeCounts) Counts(_ context.Context, userID string) (notifications.Counts, error) {
	c, ok := f[userID]
	if !ok {
		return c, errors.New("boom")
	}
	return c, nil
}

func newTestHub(counts countsSource, online ...string) (*Hub, *[]emitted) {
	var out []emitted
	isOnline := map[string]bool{}
	for _, id := range online {
		isOnline[id] = true
	}
	h := &Hub{
		counts: counts,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		emit: func(rooms []socket.Room, event string, data any) {
			names := make([]string, len(rooms))
			for i, r := range rooms {
				names[i] = string(r)
			}
			sort.Strings(names)
			out = append(out, emitted{rooms: names, event: event, data: data})
		},
		online: func(id string) bool { return isOnline[id] },
		rooms:  func(string) []socket.Room { return nil },
		revoke: func(string, []socket.Room) {},
		evict:  func([]socket.Room) {},
	}
	return h, &out
}

// denyTables refuses subscriptions on the listed tables.
type denyTables map[string]bool

func (d denyTables) Authorize(_ context.Context, _, table string, _ changefeed.Filter) error {
	if d[table] {
		return ErrSubscriptionForbidden
	}
	return nil
}

func TestDeliver(t *testing.T) {
	counts := fakeCounts{"ben": {Chat: 2, Total: 2}}
	h, out := newTestHub(counts, "ben")

	ev := changefeed.New("direct_messages", changefeed.Insert, map[string]any{"content": "hi"}, map[string]string{
		"conversation_id": "c1",
		"recipient_id":    "ben",
	})
	h.Deliver(ev)

	if assert.Len(t, *out, 2) {
		assert.Equal(t, "change", (*out)[0].event)
		assert.Equal(t, []string{
			"direct_messages:*:conversation_id=c1",
			"direct_messages:*:recipient_id=ben",
			"direct_messages:INSERT:conversation_id=c1",
			"direct_messages:INSERT:recipient_id=ben",
		}, (*out)[0].rooms)

		assert.Equal(t, "notification_counts", (*out)[1].event)
		assert.Equal(t, []string{"user:ben"}, (*out)[1].rooms)
		assert.Equal(t, notifications.Counts{Chat: 2, Total: 2}, (*out)[1].data)
	}
}

func TestDeliverSkipsOfflineAndFailedCounts(t *testing.T) {
	h, out := newTestHub(fakeCounts{}, "cleo")

	h.Deliver(changefeed.New("friendships", changefeed.Insert, nil, map[string]string{
		"user_id":   "ana",
		"friend_id": "cleo",
	}))
	assert.Len(t, *out, 1, "ana is offline and cleo's counts fail")

	h.Deliver(changefeed.New("games", changefeed.Update, nil, map[string]string{"id": "g1"}))
	assert.Len(t, *out, 2)
}

func TestDeliverDropsLostSubscriptions(t *testing.T) {
	h, _ := newTestHub(fakeCounts{}, "ben")
	h.access = denyTables{groups.TableGroups: true, "group_messages": true}

	joined := map[string][]socket.Room{
		"ben": {
			"user:ben",
			"group_messages:INSERT:group_id=g1",
			"groups:*:id=g1",
			"profiles:UPDATE:id=ana",
		},
	}
	h.rooms = func(id string) []socket.Room { return joined[id] }
	revoked := map[string][]socket.Room{}
	h.revoke = func(id string, rooms []socket.Room) { revoked[id] = append(revoked[id], rooms...) }
	var evicted []socket.Room
	h.evict = func(rooms []socket.Room) { evicted = append(evicted, rooms...) }

	t.Run("member removed", func(t *testing.T) {
		h.Deliver(changefeed.New(groups.TableMembers, changefeed.Delete, nil, map[string]string{"group_id": "g1", "user_id": "ben"}))
		assert.Equal(t, []socket.Room{"group_messages:INSERT:group_id=g1", "groups:*:id=g1"}, revoked["ben"])
		assert.Empty(t, evicted)
	})

	t.Run("offline member", func(t *testing.T) {
		joined["cleo"] = []socket.Room{"groups:*:id=g1"}
		h.Deliver(changefeed.New(groups.TableMembers, changefeed.Delete, nil, map[string]string{"group_id": "g1", "user_id": "cleo"}))
		assert.NotContains(t, revoked, "cleo")
	})

	t.Run("member added", func(t *testing.T) {
		delete(revoked, "ben")
		h.Deliver(changefeed.New(groups.TableMembers, changefeed.Insert, nil, map[string]string{"group_id": "g1", "user_id": "ben"}))
		assert.Empty(t, revoked)
	})

	t.Run("group deleted", func(t *testing.T) {
		h.Deliver(changefeed.New(groups.TableGroups, changefeed.Delete, nil, map[string]string{"id": "g1"}))
		assert.Equal(t, groupRooms("g1"), evicted)
		assert.Contains(t, evicted, socket.Room("group_messages:*:group_id=g1"))
		assert.Contains(t, evicted, socket.Room("groups:DELETE:id=g1"))
		assert.NotContains(t, evicted, socket.Room("groups:*:id=g2"))
	})
}
