// Package changefeed describes row changes so that subscribers can follow
// tables live. Services publish after their transaction commits.
package changefeed

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Op string

const (
	Insert Op = "INSERT"
	Update Op = "UPDATE"
	Delete Op = "DELETE"
	// Broadcast carries a message that is not a row, e.g. a game notice.
	Broadcast Op = "BROADCAST"
)

// Event is one change. Keys holds the columns subscribers may filter on,
// always including the row id under "id" when there is one.
type Event struct {
	Table  string            `json:"table"`
	Type   Op                `json:"type"`
	Keys   map[string]string `json:"keys"`
	Record any               `json:"record,omitempty"`
	Old    any               `json:"old_record,omitempty"`
	At     time.Time         `json:"at"`
}

func New(table string, op Op, record any, keys map[string]string) Event {
	return Event{Table: table, Type: op, Keys: keys, Record: record, At: time.Now()}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Emit publishes each event and logs failures. The write that produced the
// events already committed, so errors are not returned.
func Emit(ctx context.Context, pub Publisher, log *slog.Logger, events ...Event) {
	if pub == nil {
		return
	}
	for _, ev := range events {
		if err := pub.Publish(ctx, ev); err != nil {
			log.Warn("failed to publish change",
				slog.String("table", ev.Table),
				slog.String("type", string(ev.Type)),
				slog.Any("error", err))
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

// Recorder keeps events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Tables lists "table:TYPE" for each recorded event, in order.
func (r *Recorder) Tables() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Table + ":" + string(ev.Type)
	}
	return out
}
