package service

import (
	"context"
	"time"

	"fleet-track/internal/domain/geo"
	"fleet-track/internal/domain/session"
	"fleet-track/internal/ports"
)

// PublishPosition accepts one position report from a vehicle. The
// account check runs first on every call, so a deactivated account is
// rejected even while its session is still Active. The session
// heartbeat is refreshed before the monotonicity check; a stale sample
// still proves the vehicle is alive.
func (svc *trackerService) PublishPosition(ctx context.Context, in ports.PublishPositionInput) (ports.PublishPositionResult, error) {
	acct, err := svc.policy.AuthorizePublish(ctx, in.UserID)
	if err != nil {
		return ports.PublishPositionResult{}, err
	}

	position, err := geo.NewPosition(in.UserID, in.Latitude, in.Longitude, in.RecordedAt)
	if err != nil {
		return ports.PublishPositionResult{}, err
	}

	now := time.Now().UTC()
	err = svc.sessions.with(in.UserID, func(s *session.Session) error {
		return s.Touch(now)
	})
	if err != nil {
		return ports.PublishPositionResult{}, err
	}

	if err := svc.store.Put(ctx, position); err != nil {
		return ports.PublishPositionResult{}, err
	}

	view := ports.PositionView{
		UserID:     position.UserID,
		Latitude:   position.Latitude,
		Longitude:  position.Longitude,
		RecordedAt: position.RecordedAt,
	}

	delivered, dropped := svc.subs.fanout(acct, view)
	if dropped > 0 {
		svc.logger.Debug(svc.logger.WithUserID(ctx, in.UserID), "fanout_dropped",
			"slow watchers skipped this update", map[string]any{"delivered": delivered, "dropped": dropped})
	}

	svc.broadcastPositionUpdate(acct, position)

	return ports.PublishPositionResult{
		UserID:     position.UserID,
		RecordedAt: position.RecordedAt,
		UpdatedAt:  position.UpdatedAt,
	}, nil
}
