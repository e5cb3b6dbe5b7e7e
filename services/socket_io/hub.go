package socket_io

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/chat"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"
	"github.com/Maxapelquist/preparty-social-hub/services/groups"
	"github.com/Maxapelquist/preparty-social-hub/services/notifications"
	"github.com/Maxapelquist/preparty-social-hub/services/socket_io/handlers"
	socketio_types "github.com/Maxapelquist/preparty-social-hub/services/socket_io/types"

	"github.com/zishang520/socket.io/v2/socket"
)

type countsSource interface {
	Counts(ctx context.Context, userID string) (notifications.Counts, error)
}

// ChangeSource delivers changes published by any API instance.
type ChangeSource interface {
	SubscribeChanges(ctx context.Context, handle func(changefeed.Event)) error
}

// Hub fans changes out to subscribed sockets and refreshes the badge counts
// of connected users they affect. Subscriptions a user loses access to are
// dropped when the membership behind them goes away.
type Hub struct {
	counts countsSource
	access handlers.Authorizer
	log    *slog.Logger

	emit   func(rooms []socket.Room, event string, data any)
	online func(userID string) bool
	// rooms lists the rooms joined by the sockets of a user on this instance
	rooms func(userID string) []socket.Room
	// revoke makes every socket of a user leave rooms
	revoke func(userID string, rooms []socket.Room)
	// evict empties rooms for everyone
	evict func(rooms []socket.Room)
}

func NewHub(sio *socketio_types.SocketServer, counts countsSource, access handlers.Authorizer, log *slog.Logger) *Hub {
	return &Hub{
		counts: counts,
		access: access,
		log:    log.With(slog.String("component", "hub")),
		emit: func(rooms []socket.Room, event string, data any) {
			if sio.Sio_server == nil || len(rooms) == 0 {
				return
			}
			sio.Sio_server.To(rooms...).Emit(event, data)
		},
		online: sio.IsOnline,
		rooms: func(userID string) []socket.Room {
			var out []socket.Room
			for _, client := range sio.UserSockets(userID) {
				out = append(out, client.Rooms().Keys()...)
			}
			return out
		},
		revoke: func(userID string, rooms []socket.Room) {
			if sio.Sio_server == nil || len(rooms) == 0 {
				return
			}
			sio.Sio_server.In(socketio_types.UserRoom(userID)).SocketsLeave(rooms...)
		},
		evict: func(rooms []socket.Room) {
			if sio.Sio_server == nil || len(rooms) == 0 {
				return
			}
			sio.Sio_server.SocketsLeave(rooms...)
		},
	}
}

// Run relays changes from src until ctx is done.
func (h *Hub) Run(ctx context.Context, src ChangeSource) error {
	h.log.Info("relaying changes")
	return src.SubscribeChanges(ctx, h.Deliver)
}

// Deliver emits ev to its rooms, drops subscriptions lost through it and
// refreshes the counts of online users it affects.
func (h *Hub) Deliver(ev changefeed.Event) {
	rooms := ev.Rooms()
	targets := make([]socket.Room, len(rooms))
	for i, r := range rooms {
		targets[i] = socket.Room(r)
	}
	h.emit(targets, "change", ev)

	switch {
	case ev.Table == groups.TableMembers && ev.Type == changefeed.Delete:
		h.recheck(ev.Keys["user_id"])
	case ev.Table == groups.TableGroups && ev.Type == changefeed.Delete:
		h.evict(groupRooms(ev.Keys["id"]))
	}

	for _, userID := range notifications.Affected(ev) {
		if !h.online(userID) {
			continue
		}
		h.pushCounts(userID)
	}
}

func (h *Hub) pushCounts(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := h.counts.Counts(ctx, userID)
	if err != nil {
		h.log.Warn("failed to compute notification counts", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	h.emit([]socket.Room{socketio_types.UserRoom(userID)}, "notification_counts", counts)
}

// recheck authorizes every subscription of userID again and drops the ones
// that are no longer allowed.
func (h *Hub) recheck(userID string) {
	if userID == "" || h.access == nil || !h.online(userID) {
		return
	}

	var lost []socket.Room
	for _, room := range h.rooms(userID) {
		table, _, f, ok := changefeed.ParseRoom(string(room))
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := h.access.Authorize(ctx, userID, table, f)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, errs.ErrForbidden), errors.Is(err, errs.ErrNotFound):
			lost = append(lost, room)
		default:
			h.log.Warn("failed to recheck subscription", slog.String("user_id", userID), slog.String("room", string(room)), slog.Any("error", err))
		}
	}
	if len(lost) > 0 {
		h.revoke(userID, lost)
		h.log.Debug("dropped subscriptions", slog.String("user_id", userID), slog.Int("rooms", len(lost)))
	}
}

var subscriptionOps = []string{
	"*",
	string(changefeed.Insert),
	string(changefeed.Update),
	string(changefeed.Delete),
	string(changefeed.Broadcast),
}

// groupRooms lists every room keyed on groupID.
func groupRooms(groupID string) []socket.Room {
	if groupID == "" {
		return nil
	}
	keyed := []struct{ table, column string }{
		{groups.TableGroups, "id"},
		{groups.TableMembers, "group_id"},
		{chat.TableGroupConversations, "group_id"},
		{chat.TableGroupMessages, "group_id"},
	}
	rooms := make([]socket.Room, 0, len(keyed)*len(subscriptionOps))
	for _, k := range keyed {
		for _, op := range subscriptionOps {
			rooms = append(rooms, socket.Room(changefeed.Room(k.table, op, changefeed.Filter{Column: k.column, Value: groupID})))
		}
	}
	return rooms
}
