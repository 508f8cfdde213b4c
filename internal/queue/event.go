// Package queue defines the message payloads exchanged over the broker and
// the background consumer that turns them into welcome emails.
package queue

// UserRegisteredQueue is the durable queue carrying registration events.
const UserRegisteredQueue = "user.registered"

// UserRegisteredEvent is published after a successful registration.  It
// carries enough for the welcome-email consumer to address the message
// without re-querying the primary database, plus the user id so the
// consumer can confirm the account still exists at delivery time.
type UserRegisteredEvent struct {
	UserID       uint64 `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	RegisteredAt string `json:"registered_at"`
}
