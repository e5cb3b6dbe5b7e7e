package chat

import (
	"sort"
	"time"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"

	"github.com/google/uuid"
)

// Message is the shape shared by direct and group messages in a timeline.
// Pending messages were sent locally and not confirmed yet.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"pending,omitempty"`
}

type Day struct {
	Date     string    `json:"date"`
	Messages []Message `json:"messages"`
}

func FromDirect(msgs []postgres.DirectMessage) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{ID: m.ID, SenderID: m.SenderID, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return out
}

func FromGroup(msgs []postgres.GroupMessage) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{ID: m.ID, SenderID: m.SenderID, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return out
}

// GroupByDay splits ascending messages into calendar days in loc (UTC when
// nil).
func GroupByDay(msgs []Message, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	days := []Day{}
	for _, m := range msgs {
		date := m.CreatedAt.In(loc).Format(time.DateOnly)
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Messages = append(days[n-1].Messages, m)
			continue
		}
		days = append(days, Day{Date: date, Messages: []Message{m}})
	}
	return days
}

// Timeline is the client-side view of one conversation: messages in
// ascending order, locally sent ones included until the server confirms
// them. Not safe for concurrent use.
type Timeline struct {
	msgs []Message
}

func NewTimeline(history []Message) *Timeline {
	t := &Timeline{}
	for _, m := range history {
		t.Receive(m)
	}
	return t
}

// Optimistic appends a pending message and returns its temporary id.
func (t *Timeline) Optimistic(senderID, content string, at time.Time) string {
	id := "temp-" + uuid.NewString()
	t.insert(Message{ID: id, SenderID: senderID, Content: content, CreatedAt: at, Pending: true})
	return id
}

// Receive adds a confirmed message. A message already present by id is
// ignored; otherwise it replaces the oldest pending message with the same
// sender and content. Reports whether the timeline changed.
func (t *Timeline) Receive(m Message) bool {
	m.Pending = false
	for _, existing := range t.msgs {
		if !existing.Pending && existing.ID == m.ID {
			return false
		}
	}
	for i, existing := range t.msgs {
		if existing.Pending && existing.SenderID == m.SenderID && existing.Content == m.Content {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			break
		}
	}
	t.insert(m)
	return true
}

// Fail drops a pending message whose send failed.
func (t *Timeline) Fail(tempID string) bool {
	for i, m := range t.msgs {
		if m.Pending && m.ID == tempID {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Timeline) Days(loc *time.Location) []Day {
	return GroupByDay(t.msgs, loc)
}

func (t *Timeline) insert(m Message) {
	i := sort.Search(len(t.msgs), func(i int) bool {
		return t.msgs[i].CreatedAt.After(m.CreatedAt)
	})
	t.msgs = append(t.msgs, Message{})
	copy(t.msgs[i+1:], t.msgs[i:])
	t.msgs[i] = m
}
