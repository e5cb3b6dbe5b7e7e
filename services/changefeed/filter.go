package changefeed

import (
	"fmt"
	"strings"
)

// Filter narrows a subscription to rows whose column equals a value. It is
// written "column=eq.value".
type Filter struct {
	Column string
	Value  string
}

func ParseFilter(s string) (Filter, error) {
	col, rest, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return Filter{}, fmt.Errorf("filter %q: expected column=eq.value", s)
	}
	val, ok := strings.CutPrefix(rest, "eq.")
	if !ok || val == "" {
		return Filter{}, fmt.Errorf("filter %q: only eq is supported", s)
	}
	return Filter{Column: col, Value: val}, nil
}

func (f Filter) String() string {
	return f.Column + "=eq." + f.Value
}

// Room names the socket room that receives events of table/op matching f.
// An op of "*" receives every type.
func Room(table string, op string, f Filter) string {
	if op == "" {
		op = "*"
	}
	return fmt.Sprintf("%s:%s:%s=%s", table, op, f.Column, f.Value)
}

// ParseRoom splits a room name built by Room. Rooms of other shapes, such
// as per-user rooms, report false.
func ParseRoom(room string) (table, op string, f Filter, ok bool) {
	parts := strings.SplitN(room, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", Filter{}, false
	}
	col, val, found := strings.Cut(parts[2], "=")
	if !found || col == "" || val == "" {
		return "", "", Filter{}, false
	}
	return parts[0], parts[1], Filter{Column: col, Value: val}, true
}

// Rooms lists every room an event must be delivered to.
func (ev Event) Rooms() []string {
	rooms := make([]string, 0, len(ev.Keys)*2)
	for col, val := range ev.Keys {
		if val == "" {
			continue
		}
		f := Filter{Column: col, Value: val}
		rooms = append(rooms, Room(ev.Table, "*", f), Room(ev.Table, string(ev.Type), f))
	}
	return rooms
}
