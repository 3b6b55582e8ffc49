package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/geo"
	"fleet-track/internal/general/contracts"
)

const producerName = "tracker-service"

// generateCorrelationID returns a random hex ID for broker messages.
func generateCorrelationID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "corr-unknown"
	}
	return hex.EncodeToString(b)
}

func envelope() contracts.Envelope {
	return contracts.Envelope{
		CorrelationID: generateCorrelationID(),
		Producer:      producerName,
		SentAt:        time.Now().UTC(),
	}
}

// publishSessionStatus emits a session lifecycle event. Broker errors
// are logged and swallowed; session transitions never fail because the
// broker is down.
func (svc *trackerService) publishSessionStatus(userID, status string) {
	if svc.pub == nil {
		return
	}

	msg := contracts.SessionStatusMessage{
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Envelope:  envelope(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		svc.logger.Error(context.Background(), "session_status_marshal_failed", "failed to encode session status", err, nil)
		return
	}

	routingKey := contracts.RouteSessionStatusPrefix + userID
	if err := svc.pub.Publish(contracts.ExchangeFleetTopic, routingKey, body); err != nil {
		svc.logger.Error(context.Background(), "session_status_publish_failed",
			"failed to publish session status", err, map[string]any{"user_id": userID, "status": status})
	}
}

// broadcastPositionUpdate emits an accepted position on the fanout
// exchange for downstream boards. Best effort, same as session status.
func (svc *trackerService) broadcastPositionUpdate(acct *account.Account, position *geo.Position) {
	if svc.pub == nil {
		return
	}

	msg := contracts.PositionUpdateMessage{
		UserID:    position.UserID,
		CompanyID: acct.CompanyID,
		RouteID:   acct.RouteID,
		Location: contracts.GeoPoint{
			Lat: position.Latitude,
			Lng: position.Longitude,
		},
		RecordedAt: position.RecordedAt,
		Envelope:   envelope(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		svc.logger.Error(context.Background(), "position_broadcast_marshal_failed", "failed to encode position update", err, nil)
		return
	}

	if err := svc.pub.Publish(contracts.ExchangePositionFanout, "", body); err != nil {
		svc.logger.Error(context.Background(), "position_broadcast_failed",
			"failed to broadcast position update", err, map[string]any{"user_id": position.UserID})
	}
}
