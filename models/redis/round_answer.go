package redis

import "time"

// RoundAnswer is what one player answered in one game round. It only lives
// in Redis, for as long as the round matters.
type RoundAnswer struct {
	UserID     string    `json:"user_id"`
	DidIt      bool      `json:"did_it"`
	AnsweredAt time.Time `json:"answered_at"`
}
