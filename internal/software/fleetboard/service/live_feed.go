package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleet-track/internal/general/contracts"
	"fleet-track/internal/ports"
)

// liveEntryTTL bounds how long a vehicle stays on the board after its
// last update.
const liveEntryTTL = 2 * time.Minute

// RunLiveFeed consumes the position fanout and keeps the in-memory
// board current. It returns once the loops are scheduled; they restart
// the consumer on channel failures until ctx is cancelled.
func (service *fleetboardService) RunLiveFeed(ctx context.Context) {
	if service.rabbitmq == nil {
		return
	}

	go service.pruneLoop(ctx)
	go service.consumeLoop(ctx)
}

func (service *fleetboardService) consumeLoop(ctx context.Context) {
	for {
		err := service.rabbitmq.Consume(ctx, contracts.QueuePositionUpdatesBoard, "fleetboard-live", 50, service.handlePositionUpdate)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			service.logger.Error(ctx, "live_feed_stopped", "position feed consumer stopped, retrying", err, nil)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (service *fleetboardService) handlePositionUpdate(ctx context.Context, delivery amqp.Delivery) error {
	var msg contracts.PositionUpdateMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		return fmt.Errorf("decode position update: %w", err)
	}
	if msg.UserID == "" {
		return fmt.Errorf("position update without user_id")
	}

	entry := ports.LiveVehicle{
		UserID:     msg.UserID,
		CompanyID:  msg.CompanyID,
		RouteID:    msg.RouteID,
		Latitude:   msg.Location.Lat,
		Longitude:  msg.Location.Lng,
		RecordedAt: msg.RecordedAt,
		ReceivedAt: time.Now().UTC(),
	}

	service.mu.Lock()
	// keep the board monotonic per vehicle, late deliveries are dropped
	if prev, ok := service.live[msg.UserID]; !ok || !msg.RecordedAt.Before(prev.RecordedAt) {
		service.live[msg.UserID] = entry
	}
	service.mu.Unlock()

	return nil
}

// LiveVehicles returns a stable-ordered copy of the live board.
func (service *fleetboardService) LiveVehicles() []ports.LiveVehicle {
	service.mu.RLock()
	out := make([]ports.LiveVehicle, 0, len(service.live))
	for _, v := range service.live {
		out = append(out, v)
	}
	service.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// pruneLoop evicts vehicles that stopped reporting.
func (service *fleetboardService) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cutoff := now.UTC().Add(-liveEntryTTL)
			service.mu.Lock()
			for userID, v := range service.live {
				if v.ReceivedAt.Before(cutoff) {
					delete(service.live, userID)
				}
			}
			service.mu.Unlock()
		}
	}
}
