package contracts

import "time"

// Account event types emitted by the external provisioning process.
const (
	AccountEventActivated   = "ACTIVATED"
	AccountEventDeactivated = "DEACTIVATED"
)

// AccountEventMessage signals an account state change.
// Routing key: "account.status.{user_id}" on ExchangeFleetTopic.
// The tracker consumes deactivations to force-stop a live session
// rather than waiting for the next publish to be denied.
type AccountEventMessage struct {
	UserID    string    `json:"user_id"`
	Event     string    `json:"event"` // ACTIVATED|DEACTIVATED
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
