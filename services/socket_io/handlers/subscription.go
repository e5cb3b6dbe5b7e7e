package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/services/changefeed"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/socket.io/v2/socket"
)

// Authorizer decides whether userID may follow changes of table matching f.
type Authorizer interface {
	Authorize(ctx context.Context, userID, table string, f changefeed.Filter) error
}

// Subscription is the payload of "subscribe" and "unsubscribe":
// {table, event, filter} with filter written "column=eq.value".
type Subscription struct {
	Table  string
	Event  string
	Filter changefeed.Filter
}

var validEvents = map[string]bool{
	"*":                          true,
	string(changefeed.Insert):    true,
	string(changefeed.Update):    true,
	string(changefeed.Delete):    true,
	string(changefeed.Broadcast): true,
}

func ParseSubscription(args []any) (Subscription, error) {
	if len(args) < 1 {
		return Subscription{}, errs.Invalid("missing subscription payload")
	}
	payload, ok := args[0].(map[string]any)
	if !ok {
		return Subscription{}, errs.Invalid("subscription payload must be an object")
	}

	table, _ := payload["table"].(string)
	event, _ := payload["event"].(string)
	filter, _ := payload["filter"].(string)
	if event == "" {
		event = "*"
	}
	if table == "" {
		return Subscription{}, errs.Invalid("table is required")
	}
	if !validEvents[event] {
		return Subscription{}, errs.Invalid("unknown event %q", event)
	}
	f, err := changefeed.ParseFilter(filter)
	if err != nil {
		return Subscription{}, errs.Invalid("%s", err.Error())
	}
	return Subscription{Table: table, Event: event, Filter: f}, nil
}

func (s Subscription) Room() socket.Room {
	return socket.Room(changefeed.Room(s.Table, s.Event, s.Filter))
}

func HandleSubscribe(client *socket.Socket, userID string, auth Authorizer, log *slog.Logger) func(args ...any) {
	return func(args ...any) {
		sub, err := ParseSubscription(args)
		if err != nil {
			emitError(client, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := auth.Authorize(ctx, userID, sub.Table, sub.Filter); err != nil {
			if !errs.Public(err) {
				log.Error("authorizing subscription", slog.String("user_id", userID), slog.Any("error", err))
			}
			emitError(client, err)
			return
		}

		client.Join(sub.Room())
		client.Emit("subscribed", gin.H{"table": sub.Table, "event": sub.Event, "filter": sub.Filter.String()})
	}
}

func HandleUnsubscribe(client *socket.Socket) func(args ...any) {
	return func(args ...any) {
		sub, err := ParseSubscription(args)
		if err != nil {
			emitError(client, err)
			return
		}
		client.Leave(sub.Room())
		client.Emit("unsubscribed", gin.H{"table": sub.Table, "event": sub.Event, "filter": sub.Filter.String()})
	}
}

// ErrorMessage is what a client sees for err.
func ErrorMessage(err error) string {
	var e *errs.Error
	switch {
	case errors.As(err, &e):
		return e.Msg
	case errs.Public(err):
		return err.Error()
	}
	return "internal server error"
}

func emitError(client *socket.Socket, err error) {
	client.Emit("error", gin.H{"error": ErrorMessage(err)})
}
