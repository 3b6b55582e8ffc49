package service

import (
	"context"
	"time"

	"fleet-track/internal/domain/session"
	"fleet-track/internal/general/contracts"
	"fleet-track/internal/ports"
)

// StopSession ends position sharing for userID. Stopping a session
// that is not Active fails with session.ErrNotActive.
func (svc *trackerService) StopSession(ctx context.Context, userID string) (ports.StopSessionResult, error) {
	now := time.Now().UTC()

	err := svc.sessions.with(userID, func(s *session.Session) error {
		return s.Stop(now)
	})
	if err != nil {
		return ports.StopSessionResult{}, err
	}

	svc.logger.Info(svc.logger.WithUserID(ctx, userID), "session_stopped", "position sharing stopped", nil)
	svc.publishSessionStatus(userID, contracts.SessionStatusStopped)

	return ports.StopSessionResult{
		UserID:    userID,
		State:     session.StateStopped.String(),
		StoppedAt: now,
		Message:   "session stopped",
	}, nil
}
