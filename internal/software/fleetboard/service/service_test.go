package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleet-track/internal/general/contracts"
	"fleet-track/internal/general/logger"
	"fleet-track/internal/ports"
)

// fakeUOW runs the function without a real transaction.
type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeMetrics struct {
	total      int
	active     int
	reporting  int
	perCompany []ports.CompanyVehicleCount
}

func (f *fakeMetrics) CountAccounts(context.Context) (int, error)       { return f.total, nil }
func (f *fakeMetrics) CountActiveAccounts(context.Context) (int, error) { return f.active, nil }
func (f *fakeMetrics) CountPositionsSince(context.Context, time.Time) (int, error) {
	return f.reporting, nil
}
func (f *fakeMetrics) VehiclesPerCompany(context.Context) ([]ports.CompanyVehicleCount, error) {
	return f.perCompany, nil
}

func newTestBoard(metrics *fakeMetrics) *fleetboardService {
	return NewFleetboardService(logger.New("fleetboard-test"), fakeUOW{}, metrics, nil).(*fleetboardService)
}

func TestGetFleetOverview(t *testing.T) {
	metrics := &fakeMetrics{
		total:     12,
		active:    9,
		reporting: 4,
		perCompany: []ports.CompanyVehicleCount{
			{CompanyID: "acme", Vehicles: 8, Active: 6},
			{CompanyID: "globex", Vehicles: 4, Active: 3},
		},
	}
	board := newTestBoard(metrics)

	res, err := board.GetFleetOverview(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Metrics.TotalVehicles != 12 || res.Metrics.ActiveVehicles != 9 || res.Metrics.ReportingLastMin != 4 {
		t.Fatalf("unexpected metrics: %+v", res.Metrics)
	}
	if len(res.Metrics.PerCompany) != 2 || res.Metrics.PerCompany[0].CompanyID != "acme" {
		t.Fatalf("unexpected per-company breakdown: %+v", res.Metrics.PerCompany)
	}
	if res.Timestamp.IsZero() {
		t.Fatal("overview must carry a timestamp")
	}
}

func positionUpdate(t *testing.T, userID string, recordedAt time.Time) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(contracts.PositionUpdateMessage{
		UserID:     userID,
		CompanyID:  "acme",
		RouteID:    "ring-road",
		Location:   contracts.GeoPoint{Lat: 41.31, Lng: 69.24},
		RecordedAt: recordedAt,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return amqp.Delivery{Body: body}
}

func TestLiveBoardUpdates(t *testing.T) {
	board := newTestBoard(&fakeMetrics{})
	ctx := context.Background()
	base := time.Now().UTC()

	if err := board.handlePositionUpdate(ctx, positionUpdate(t, "bus-042", base)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := board.handlePositionUpdate(ctx, positionUpdate(t, "bus-001", base.Add(time.Second))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vehicles := board.LiveVehicles()
	if len(vehicles) != 2 {
		t.Fatalf("expected 2 live vehicles, got %d", len(vehicles))
	}
	// stable ordering by user id
	if vehicles[0].UserID != "bus-001" || vehicles[1].UserID != "bus-042" {
		t.Fatalf("unexpected ordering: %+v", vehicles)
	}
}

func TestLiveBoardDropsLateDeliveries(t *testing.T) {
	board := newTestBoard(&fakeMetrics{})
	ctx := context.Background()
	base := time.Now().UTC()

	if err := board.handlePositionUpdate(ctx, positionUpdate(t, "bus-042", base)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// an older report delivered late must not regress the board
	if err := board.handlePositionUpdate(ctx, positionUpdate(t, "bus-042", base.Add(-time.Second))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vehicles := board.LiveVehicles()
	if len(vehicles) != 1 {
		t.Fatalf("expected 1 live vehicle, got %d", len(vehicles))
	}
	if !vehicles[0].RecordedAt.Equal(base) {
		t.Fatalf("board regressed to %v, want %v", vehicles[0].RecordedAt, base)
	}
}

func TestLiveBoardRejectsMalformedMessages(t *testing.T) {
	board := newTestBoard(&fakeMetrics{})
	ctx := context.Background()

	if err := board.handlePositionUpdate(ctx, amqp.Delivery{Body: []byte("not json")}); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	if err := board.handlePositionUpdate(ctx, amqp.Delivery{Body: []byte(`{"company_id":"acme"}`)}); err == nil {
		t.Fatal("expected an error for a missing user_id")
	}
}
