package service

import (
	"context"
	"sync"
	"time"

	"fleet-track/internal/domain/session"
	"fleet-track/internal/general/contracts"
)

// userSession pairs a session with its own lock so state transitions
// for one vehicle never contend with another's.
type userSession struct {
	mu      sync.Mutex
	session *session.Session
}

type sessionRegistry struct {
	entries sync.Map
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{}
}

func (reg *sessionRegistry) entry(userID string) (*userSession, error) {
	if existing, ok := reg.entries.Load(userID); ok {
		return existing.(*userSession), nil
	}

	fresh, err := session.New(userID)
	if err != nil {
		return nil, err
	}

	actual, _ := reg.entries.LoadOrStore(userID, &userSession{session: fresh})
	return actual.(*userSession), nil
}

// with runs fn under the per-user lock. fn receives the live session
// and may mutate it; its error is returned as-is.
func (reg *sessionRegistry) with(userID string, fn func(*session.Session) error) error {
	entry, err := reg.entry(userID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

// sweep stops every session idle longer than idleTimeout and returns
// the affected user IDs.
func (reg *sessionRegistry) sweep(now time.Time, idleTimeout time.Duration) []string {
	var expired []string

	reg.entries.Range(func(_, value any) bool {
		entry := value.(*userSession)
		entry.mu.Lock()
		if entry.session.ExpireIfIdle(now, idleTimeout) {
			expired = append(expired, entry.session.UserID)
		}
		entry.mu.Unlock()
		return true
	})

	return expired
}

func (svc *trackerService) runIdleSweeper(ctx context.Context) {
	interval := svc.opts.SessionIdleTimeout / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, userID := range svc.sessions.sweep(now.UTC(), svc.opts.SessionIdleTimeout) {
				uctx := svc.logger.WithUserID(ctx, userID)
				svc.logger.Info(uctx, "session_timed_out", "session stopped after idle timeout", nil)
				svc.publishSessionStatus(userID, contracts.SessionStatusTimedOut)
			}
		}
	}
}
