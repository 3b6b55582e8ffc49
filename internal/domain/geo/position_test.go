package geo

import (
	"errors"
	"testing"
	"time"
)

func TestNewPositionValidation(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name    string
		userID  string
		lat     float64
		lng     float64
		at      time.Time
		wantErr error
	}{
		{"valid", "bus-042", 41.31, 69.24, now, nil},
		{"empty user", "  ", 41.31, 69.24, now, ErrEmptyUserID},
		{"lat too low", "bus-042", -90.01, 0, now, ErrInvalidLatitude},
		{"lat too high", "bus-042", 90.01, 0, now, ErrInvalidLatitude},
		{"lng too low", "bus-042", 0, -180.01, now, ErrInvalidLongitude},
		{"lng too high", "bus-042", 0, 180.01, now, ErrInvalidLongitude},
		{"missing recorded_at", "bus-042", 0, 0, time.Time{}, ErrMissingRecordedAt},
		{"boundary lat", "bus-042", 90, -180, now, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPosition(tc.userID, tc.lat, tc.lng, tc.at)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAdvances(t *testing.T) {
	base := time.Now().UTC()
	prev, err := NewPosition("bus-042", 41.31, 69.24, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newer, _ := NewPosition("bus-042", 41.32, 69.25, base.Add(time.Second))
	if !newer.Advances(prev) {
		t.Fatal("a newer report must advance")
	}

	equal, _ := NewPosition("bus-042", 41.33, 69.26, base)
	if !equal.Advances(prev) {
		t.Fatal("an equal-timestamp report must advance")
	}

	older, _ := NewPosition("bus-042", 41.34, 69.27, base.Add(-time.Second))
	if older.Advances(prev) {
		t.Fatal("an older report must not advance")
	}

	if !older.Advances(nil) {
		t.Fatal("any report advances when there is no stored position")
	}
}
