// Package queue defines message payloads exchanged over the message broker.
package queue

// AuthEventsQueue is the durable queue carrying AuthEvent messages.
const AuthEventsQueue = "auth.events"

// Auth event types.
const (
    EventSignIn       = "sign_in"
    EventRefresh      = "refresh"
    EventRefreshReuse = "refresh_reuse"
    EventLogout       = "logout"
)

// AuthEvent is published after session lifecycle changes.  It never
// carries token values or password material, only identifiers.
type AuthEvent struct {
    Type       string `json:"type"`
    UserID     string `json:"user_id,omitempty"`
    TokenID    string `json:"token_id,omitempty"` // refresh token jti
    Method     string `json:"method,omitempty"`   // password, signup, google
    OccurredAt string `json:"occurred_at"`
}
