package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleet-track/internal/domain/session"
	"fleet-track/internal/general/contracts"
)

// consumeAccountEvents listens for account state changes from the
// provisioning process. A deactivation force-stops any live session so
// the vehicle disappears from watchers without waiting for its next
// publish to be denied. The loop restarts the consumer on channel
// failures until ctx is cancelled.
func (svc *trackerService) consumeAccountEvents(ctx context.Context) {
	for {
		err := svc.rabbitmq.Consume(ctx, contracts.QueueAccountEvents, "tracker-account-events", 10, svc.handleAccountEvent)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			svc.logger.Error(ctx, "account_consumer_stopped", "account events consumer stopped, retrying", err, nil)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (svc *trackerService) handleAccountEvent(ctx context.Context, delivery amqp.Delivery) error {
	var event contracts.AccountEventMessage
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return fmt.Errorf("decode account event: %w", err)
	}
	if event.UserID == "" {
		return fmt.Errorf("account event without user_id")
	}

	uctx := svc.logger.WithUserID(ctx, event.UserID)
	if event.CorrelationID != "" {
		uctx = svc.logger.WithRequestID(uctx, event.CorrelationID)
	}

	if event.Event != contracts.AccountEventDeactivated {
		svc.logger.Debug(uctx, "account_event_ignored", "no action for event "+event.Event, nil)
		return nil
	}

	now := time.Now().UTC()
	err := svc.sessions.with(event.UserID, func(s *session.Session) error {
		return s.Stop(now)
	})
	if errors.Is(err, session.ErrNotActive) {
		return nil
	}
	if err != nil {
		return err
	}

	svc.logger.Info(uctx, "session_force_stopped", "session stopped after account deactivation", nil)
	svc.publishSessionStatus(event.UserID, contracts.SessionStatusStopped)
	return nil
}
