package service

import (
	"context"
	"time"

	"fleet-track/internal/domain/session"
	"fleet-track/internal/general/contracts"
	"fleet-track/internal/ports"
)

// StartSession activates position sharing for userID. Starting an
// already Active session refreshes it instead of failing.
func (svc *trackerService) StartSession(ctx context.Context, userID string) (ports.StartSessionResult, error) {
	if _, err := svc.policy.AuthorizePublish(ctx, userID); err != nil {
		return ports.StartSessionResult{}, err
	}

	now := time.Now().UTC()
	var startedAt time.Time

	err := svc.sessions.with(userID, func(s *session.Session) error {
		s.Start(now)
		startedAt = s.StartedAt
		return nil
	})
	if err != nil {
		return ports.StartSessionResult{}, err
	}

	svc.logger.Info(svc.logger.WithUserID(ctx, userID), "session_started", "position sharing started", nil)
	svc.publishSessionStatus(userID, contracts.SessionStatusActive)

	return ports.StartSessionResult{
		UserID:              userID,
		State:               session.StateActive.String(),
		StartedAt:           startedAt,
		PublishIntervalHint: svc.opts.PublishIntervalHint.String(),
		Message:             "session started, publish positions every " + svc.opts.PublishIntervalHint.String(),
	}, nil
}
