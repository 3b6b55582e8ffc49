package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/geo"
	"fleet-track/internal/domain/session"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/general/contracts"
	"fleet-track/internal/ports"
)

func TestStartPublishGetRoundtrip(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))
	ctx := context.Background()

	res, err := svc.StartSession(ctx, "bus-042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != session.StateActive.String() {
		t.Fatalf("expected Active state, got %s", res.State)
	}
	if res.PublishIntervalHint == "" {
		t.Fatal("start result must carry a publish interval hint")
	}

	recordedAt := time.Now().UTC()
	if _, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
		UserID:     "bus-042",
		Latitude:   41.31,
		Longitude:  69.24,
		RecordedAt: recordedAt,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := svc.GetPosition(ctx, "dispatcher-1", user.RoleDispatcher, "bus-042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Latitude != 41.31 || view.Longitude != 69.24 {
		t.Fatalf("unexpected position %+v", view)
	}
	if !view.RecordedAt.Equal(recordedAt) {
		t.Fatalf("recorded_at mismatch: got %v, want %v", view.RecordedAt, recordedAt)
	}
}

func TestPublishWithoutStartFails(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))

	_, err := svc.PublishPosition(context.Background(), ports.PublishPositionInput{
		UserID:     "bus-042",
		Latitude:   41.31,
		Longitude:  69.24,
		RecordedAt: time.Now().UTC(),
	})
	if !errors.Is(err, session.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestStopWithoutActiveSessionFails(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StopSession(ctx, "bus-042"); !errors.Is(err, session.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.StopSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// stopping twice fails the second time
	if _, err := svc.StopSession(ctx, "bus-042"); !errors.Is(err, session.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestStaleUpdateRejectedEqualAccepted(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Now().UTC()
	publish := func(at time.Time) error {
		_, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
			UserID:     "bus-042",
			Latitude:   41.31,
			Longitude:  69.24,
			RecordedAt: at,
		})
		return err
	}

	if err := publish(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := publish(base.Add(-time.Second)); !errors.Is(err, geo.ErrStaleUpdate) {
		t.Fatalf("expected ErrStaleUpdate, got %v", err)
	}
	if err := publish(base); err != nil {
		t.Fatalf("equal timestamps must be accepted, got %v", err)
	}
	if err := publish(base.Add(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInactiveAccountDeniedMidSession(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// deactivation takes effect on the next call even though the
	// session is still Active
	accounts.setActive("bus-042", false)

	_, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
		UserID:     "bus-042",
		Latitude:   41.31,
		Longitude:  69.24,
		RecordedAt: time.Now().UTC(),
	})
	if !errors.Is(err, account.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}

	if _, err := svc.StartSession(ctx, "bus-042"); !errors.Is(err, account.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestUnknownAccountAndTransientAreDistinct(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "ghost"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	accounts.fail(ports.Transient("account_lookup", errors.New("connection refused")))

	_, err := svc.StartSession(ctx, "ghost")
	if !ports.IsTransient(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
	if errors.Is(err, ports.ErrNotFound) {
		t.Fatal("a transient failure must not look like a missing account")
	}
}

func TestIdleSweepStopsSession(t *testing.T) {
	idle := 15 * time.Second
	svc, accounts, _, _ := newTestService(Options{SessionIdleTimeout: idle})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// nothing expires inside the idle window
	if expired := svc.sessions.sweep(time.Now().UTC().Add(idle-time.Second), idle); len(expired) != 0 {
		t.Fatalf("expected no expiries, got %v", expired)
	}

	expired := svc.sessions.sweep(time.Now().UTC().Add(idle+time.Second), idle)
	if len(expired) != 1 || expired[0] != "bus-042" {
		t.Fatalf("expected bus-042 to expire, got %v", expired)
	}

	// a publish after expiry is rejected until the session restarts
	_, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
		UserID:     "bus-042",
		Latitude:   41.31,
		Longitude:  69.24,
		RecordedAt: time.Now().UTC(),
	})
	if !errors.Is(err, session.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("restart after expiry must work, got %v", err)
	}
}

func TestPublishRefreshesIdleClock(t *testing.T) {
	idle := 15 * time.Second
	svc, accounts, _, _ := newTestService(Options{SessionIdleTimeout: idle})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
		UserID:     "bus-042",
		Latitude:   41.31,
		Longitude:  69.24,
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var lastUpdate time.Time
	_ = svc.sessions.with("bus-042", func(s *session.Session) error {
		lastUpdate = s.LastUpdateAt
		return nil
	})

	// sweeping relative to the refreshed heartbeat finds nothing
	if expired := svc.sessions.sweep(lastUpdate.Add(idle-time.Second), idle); len(expired) != 0 {
		t.Fatalf("expected no expiries, got %v", expired)
	}
}

func TestSessionEventsPublished(t *testing.T) {
	svc, accounts, _, broker := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.StopSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := broker.byExchange(contracts.ExchangeFleetTopic)
	if len(events) != 2 {
		t.Fatalf("expected 2 session events, got %d", len(events))
	}
	wantKey := contracts.RouteSessionStatusPrefix + "bus-042"
	for _, e := range events {
		if e.RoutingKey != wantKey {
			t.Fatalf("unexpected routing key %q", e.RoutingKey)
		}
	}
}

func TestPositionBroadcastOnFanoutExchange(t *testing.T) {
	svc, accounts, _, broker := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
		UserID:     "bus-042",
		Latitude:   41.31,
		Longitude:  69.24,
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := broker.byExchange(contracts.ExchangePositionFanout); len(got) != 1 {
		t.Fatalf("expected 1 fanout message, got %d", len(got))
	}
}

func TestSnapshotFleetScope(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	accounts.put(activeAccount("bus-043", "acme", "ring-road"))
	accounts.put(activeAccount("bus-077", "acme", "airport"))
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))
	ctx := context.Background()

	for _, id := range []string{"bus-042", "bus-043", "bus-077"} {
		if _, err := svc.StartSession(ctx, id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
			UserID:     id,
			Latitude:   41.31,
			Longitude:  69.24,
			RecordedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	views, err := svc.Snapshot(ctx, "dispatcher-1", user.RoleDispatcher, account.FleetScope("acme", "ring-road"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 positions on the route, got %d", len(views))
	}
	if views[0].UserID != "bus-042" || views[1].UserID != "bus-043" {
		t.Fatalf("unexpected snapshot order: %+v", views)
	}

	// a vehicle that never reported yields an empty snapshot, not an error
	accounts.put(activeAccount("bus-099", "acme", "ring-road"))
	views, err = svc.Snapshot(ctx, "dispatcher-1", user.RoleDispatcher, account.VehicleScope("bus-099"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", views)
	}
}

func TestGetPositionNotFound(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))

	_, err := svc.GetPosition(context.Background(), "dispatcher-1", user.RoleDispatcher, "bus-042")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountDeactivationEventStopsSession(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	ctx := context.Background()

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := []byte(`{"user_id":"bus-042","event":"DEACTIVATED"}`)
	if err := svc.handleAccountEvent(ctx, deliveryWithBody(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = svc.sessions.with("bus-042", func(s *session.Session) error {
		if s.Active() {
			t.Fatal("session must be stopped after the deactivation event")
		}
		return nil
	})

	// a second deactivation for a stopped session is a no-op
	if err := svc.handleAccountEvent(ctx, deliveryWithBody(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConcurrentPublishesStayMonotonic(t *testing.T) {
	svc, accounts, positions, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	accounts.put(activeAccount("bus-043", "acme", "ring-road"))
	ctx := context.Background()

	for _, id := range []string{"bus-042", "bus-043"} {
		if _, err := svc.StartSession(ctx, id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	base := time.Now().UTC()
	const n = 50

	var wg sync.WaitGroup
	for _, id := range []string{"bus-042", "bus-043"} {
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(userID string, offset int) {
				defer wg.Done()
				// racing offsets arrive in arbitrary order; losers get
				// a stale rejection, never a regression
				_, _ = svc.PublishPosition(ctx, ports.PublishPositionInput{
					UserID:     userID,
					Latitude:   41.31,
					Longitude:  69.24,
					RecordedAt: base.Add(time.Duration(offset) * time.Millisecond),
				})
			}(id, i)
		}
	}
	wg.Wait()

	want := base.Add((n - 1) * time.Millisecond)
	for _, id := range []string{"bus-042", "bus-043"} {
		stored, err := positions.Get(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !stored.RecordedAt.Equal(want) {
			t.Fatalf("%s: stored recorded_at %v, want %v", id, stored.RecordedAt, want)
		}

		cached, err := svc.store.Get(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cached.RecordedAt.Equal(want) {
			t.Fatalf("%s: cached recorded_at %v, want %v", id, cached.RecordedAt, want)
		}
	}
}

func TestConcurrentSessionTransitions(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	ctx := context.Background()

	const vehicles = 20
	for i := 0; i < vehicles; i++ {
		accounts.put(activeAccount(fmt.Sprintf("bus-%03d", i), "acme", "ring-road"))
	}

	var wg sync.WaitGroup
	for i := 0; i < vehicles; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("bus-%03d", i)
			if _, err := svc.StartSession(ctx, id); err != nil {
				t.Errorf("%s start: %v", id, err)
				return
			}
			if _, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
				UserID:     id,
				Latitude:   41.31,
				Longitude:  69.24,
				RecordedAt: time.Now().UTC(),
			}); err != nil {
				t.Errorf("%s publish: %v", id, err)
				return
			}
			if _, err := svc.StopSession(ctx, id); err != nil {
				t.Errorf("%s stop: %v", id, err)
			}
		}(i)
	}
	wg.Wait()
}
