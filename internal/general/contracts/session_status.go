package contracts

import "time"

// Session status values carried in SessionStatusMessage.
const (
	SessionStatusActive   = "ACTIVE"
	SessionStatusStopped  = "STOPPED"
	SessionStatusTimedOut = "TIMED_OUT"
)

// SessionStatusMessage is published by the tracker service.
// Routing key: "session.status.{user_id}" on ExchangeFleetTopic.
type SessionStatusMessage struct {
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"` // ACTIVE|STOPPED|TIMED_OUT
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
