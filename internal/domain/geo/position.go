package geo

import (
	"errors"
	"strings"
	"time"
)

// Position is the latest known location of a vehicle. One row per
// user_id; newer reports overwrite older ones, no history is kept.
type Position struct {
	UserID     string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
	UpdatedAt  time.Time
}

var (
	ErrEmptyUserID       = errors.New("user_id cannot be empty")
	ErrInvalidLatitude   = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude  = errors.New("longitude must be between -180 and 180")
	ErrMissingRecordedAt = errors.New("recorded_at is required")
	ErrStaleUpdate       = errors.New("stale update: recorded_at is older than the stored position")
)

// NewPosition constructs a validated Position.
func NewPosition(userID string, latitude, longitude float64, recordedAt time.Time) (*Position, error) {
	position := &Position{
		UserID:     strings.TrimSpace(userID),
		Latitude:   latitude,
		Longitude:  longitude,
		RecordedAt: recordedAt.UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := position.Validate(); err != nil {
		return nil, err
	}
	return position, nil
}

// Validate checks invariants of the Position entity.
func (position *Position) Validate() error {
	if strings.TrimSpace(position.UserID) == "" {
		return ErrEmptyUserID
	}
	if position.Latitude < -90 || position.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if position.Longitude < -180 || position.Longitude > 180 {
		return ErrInvalidLongitude
	}
	if position.RecordedAt.IsZero() {
		return ErrMissingRecordedAt
	}
	return nil
}

// Advances reports whether this position may overwrite prev.
// Equal timestamps are allowed; only strictly older reports are stale.
func (position *Position) Advances(prev *Position) bool {
	if prev == nil {
		return true
	}
	return !position.RecordedAt.Before(prev.RecordedAt)
}
