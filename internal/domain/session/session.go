package session

import (
	"errors"
	"strings"
	"time"
)

// State is the sharing state of a vehicle's session.
type State string

const (
	StateStopped State = "STOPPED"
	StateActive  State = "ACTIVE"
)

// String returns the string representation of the State.
func (state State) String() string {
	return string(state)
}

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrNotActive      = errors.New("session is not active")
)

// Session tracks whether a vehicle is currently sharing its position.
// Transitions: Stopped --Start--> Active, Active --Stop--> Stopped,
// Active --ExpireIfIdle--> Stopped. Callers serialize access per user.
type Session struct {
	UserID       string
	State        State
	StartedAt    time.Time
	LastUpdateAt time.Time
	StoppedAt    *time.Time
}

// New creates a Stopped session shell for the given user.
func New(userID string) (*Session, error) {
	if userID = strings.TrimSpace(userID); userID == "" {
		return nil, ErrUserIDRequired
	}
	return &Session{UserID: userID, State: StateStopped}, nil
}

// Start activates the session. Restarting an Active session refreshes
// its timestamps rather than failing.
func (s *Session) Start(now time.Time) {
	s.State = StateActive
	s.StartedAt = now
	s.LastUpdateAt = now
	s.StoppedAt = nil
}

// Stop deactivates the session. Stopping a Stopped session is an error
// so callers can surface "call start first" to the client.
func (s *Session) Stop(now time.Time) error {
	if s.State != StateActive {
		return ErrNotActive
	}
	s.State = StateStopped
	s.StoppedAt = &now
	return nil
}

// Touch records a publish heartbeat. Fails when the session is not
// Active so a stopped or timed-out session cannot publish.
func (s *Session) Touch(now time.Time) error {
	if s.State != StateActive {
		return ErrNotActive
	}
	s.LastUpdateAt = now
	return nil
}

// ExpireIfIdle stops an Active session whose last update is older than
// the idle window. Returns true when the session transitioned.
func (s *Session) ExpireIfIdle(now time.Time, idle time.Duration) bool {
	if s.State != StateActive {
		return false
	}
	if now.Sub(s.LastUpdateAt) < idle {
		return false
	}
	stoppedAt := now
	s.State = StateStopped
	s.StoppedAt = &stoppedAt
	return true
}

// Active reports whether the session is currently Active.
func (s *Session) Active() bool {
	return s.State == StateActive
}
