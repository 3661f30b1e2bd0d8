package chat

import "time"

// Session captures a transient conversation handle. Message history and
// contextual data live in the coordinator's store and are reachable only by
// session id.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
