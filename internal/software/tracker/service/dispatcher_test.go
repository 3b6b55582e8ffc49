package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/ports"
)

func publishOnce(t *testing.T, svc *trackerService, userID string, at time.Time) {
	t.Helper()
	if _, err := svc.PublishPosition(context.Background(), ports.PublishPositionInput{
		UserID:     userID,
		Latitude:   41.31,
		Longitude:  69.24,
		RecordedAt: at,
	}); err != nil {
		t.Fatalf("publish %s: %v", userID, err)
	}
}

func drain(sub *ports.Subscription) []ports.PositionView {
	var out []ports.PositionView
	for {
		select {
		case v, ok := <-sub.Updates:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestFanoutFiltersByScope(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	accounts.put(activeAccount("bus-077", "acme", "airport"))
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))
	ctx := context.Background()

	fleetSub, err := svc.Subscribe(ctx, "dispatcher-1", user.RoleDispatcher, account.FleetScope("acme", "ring-road"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vehicleSub, err := svc.Subscribe(ctx, "dispatcher-1", user.RoleDispatcher, account.VehicleScope("bus-077"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"bus-042", "bus-077"} {
		if _, err := svc.StartSession(ctx, id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	now := time.Now().UTC()
	publishOnce(t, svc, "bus-042", now)
	publishOnce(t, svc, "bus-077", now)

	fleetViews := drain(fleetSub)
	if len(fleetViews) != 1 || fleetViews[0].UserID != "bus-042" {
		t.Fatalf("fleet watch should only see its route, got %+v", fleetViews)
	}

	vehicleViews := drain(vehicleSub)
	if len(vehicleViews) != 1 || vehicleViews[0].UserID != "bus-077" {
		t.Fatalf("vehicle watch should only see its vehicle, got %+v", vehicleViews)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))

	sub, err := svc.Subscribe(context.Background(), "dispatcher-1", user.RoleDispatcher, account.FleetScope("acme", "ring-road"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.Unsubscribe(sub.ID)

	if _, open := <-sub.Updates; open {
		t.Fatal("channel must be closed after Unsubscribe")
	}

	// unsubscribing twice is safe
	svc.Unsubscribe(sub.ID)
}

func TestSubscribeContextCancelRemoves(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := svc.Subscribe(ctx, "dispatcher-1", user.RoleDispatcher, account.FleetScope("acme", "ring-road"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancel()

	// the teardown goroutine closes the channel shortly after cancel
	select {
	case _, open := <-sub.Updates:
		if open {
			t.Fatal("expected closed channel after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription was not torn down after context cancel")
	}
}

func TestSubscribeAuthorization(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	accounts.put(activeAccount("bus-077", "acme", "airport"))
	ctx := context.Background()

	// a vehicle may watch itself
	if _, err := svc.Subscribe(ctx, "bus-042", user.RoleVehicle, account.VehicleScope("bus-042")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// and its own fleet
	if _, err := svc.Subscribe(ctx, "bus-042", user.RoleVehicle, account.FleetScope("acme", "ring-road")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// but not another vehicle
	if _, err := svc.Subscribe(ctx, "bus-042", user.RoleVehicle, account.VehicleScope("bus-077")); !errors.Is(err, ports.ErrScopeForbidden) {
		t.Fatalf("expected ErrScopeForbidden, got %v", err)
	}
	// nor another fleet
	if _, err := svc.Subscribe(ctx, "bus-042", user.RoleVehicle, account.FleetScope("acme", "airport")); !errors.Is(err, ports.ErrScopeForbidden) {
		t.Fatalf("expected ErrScopeForbidden, got %v", err)
	}
	// unknown readers are rejected outright
	if _, err := svc.Subscribe(ctx, "ghost", user.RoleDispatcher, account.FleetScope("acme", "ring-road")); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// malformed scopes never pass
	if _, err := svc.Subscribe(ctx, "bus-042", user.RoleVehicle, account.Scope{}); !errors.Is(err, ports.ErrScopeForbidden) {
		t.Fatalf("expected ErrScopeForbidden, got %v", err)
	}
}

func TestRevalidationRevokesDeactivatedReader(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "dispatcher-1", user.RoleDispatcher, account.FleetScope("acme", "ring-road"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// still authorized, nothing happens
	svc.revalidateSubscriptions(ctx)
	select {
	case _, open := <-sub.Updates:
		if !open {
			t.Fatal("authorized subscription must not be revoked")
		}
	default:
	}

	accounts.setActive("dispatcher-1", false)
	svc.revalidateSubscriptions(ctx)

	if _, open := <-sub.Updates; open {
		t.Fatal("deactivated reader must lose its subscription")
	}
}

func TestRevalidationKeepsSubscriptionOnTransientFailure(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "dispatcher-1", user.RoleDispatcher, account.FleetScope("acme", "ring-road"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	accounts.fail(ports.Transient("account_lookup", errors.New("connection refused")))
	svc.revalidateSubscriptions(ctx)
	accounts.fail(nil)

	select {
	case _, open := <-sub.Updates:
		if !open {
			t.Fatal("a flaky registry must not revoke subscriptions")
		}
	default:
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	svc, accounts, _, _ := newTestService(Options{})
	accounts.put(activeAccount("bus-042", "acme", "ring-road"))
	accounts.put(activeAccount("dispatcher-1", "acme", "ring-road"))
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "dispatcher-1", user.RoleDispatcher, account.VehicleScope("bus-042"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.StartSession(ctx, "bus-042"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// publish more than the buffer holds without reading; the
	// publisher must never block
	base := time.Now().UTC()
	total := subscriptionBuffer + 10
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			if _, err := svc.PublishPosition(ctx, ports.PublishPositionInput{
				UserID:     "bus-042",
				Latitude:   41.31,
				Longitude:  69.24,
				RecordedAt: base.Add(time.Duration(i) * time.Millisecond),
			}); err != nil {
				t.Errorf("publish: %v", err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	got := drain(sub)
	if len(got) != subscriptionBuffer {
		t.Fatalf("expected exactly %d buffered updates, got %d", subscriptionBuffer, len(got))
	}
}
