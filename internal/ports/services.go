package ports

import (
	"context"
	"time"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/user"
)

// ----- DTOs for the Tracker Service -----

// StartSessionResult is returned by TrackerService.StartSession().
type StartSessionResult struct {
	UserID              string    `json:"user_id"`
	State               string    `json:"state"`
	StartedAt           time.Time `json:"started_at"`
	PublishIntervalHint string    `json:"publish_interval_hint"`
	Message             string    `json:"message"`
}

// StopSessionResult is returned by TrackerService.StopSession().
type StopSessionResult struct {
	UserID    string    `json:"user_id"`
	State     string    `json:"state"`
	StoppedAt time.Time `json:"stopped_at"`
	Message   string    `json:"message"`
}

// PublishPositionInput is the validated input for a position report.
type PublishPositionInput struct {
	UserID     string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}

// PublishPositionResult is returned by TrackerService.PublishPosition().
type PublishPositionResult struct {
	UserID     string    `json:"user_id"`
	RecordedAt time.Time `json:"recorded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PositionView is the read model served to watchers and snapshots.
type PositionView struct {
	UserID     string    `json:"user_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Subscription is a live watch handle. Updates is closed when the
// subscription is cancelled, revoked, or the service shuts down.
type Subscription struct {
	ID       string
	ReaderID string
	Scope    account.Scope
	Updates  <-chan PositionView
}

// ----- Tracker Service Interface -----

// TrackerService exposes the boundary of the tracker service.
type TrackerService interface {
	StartSession(ctx context.Context, userID string) (StartSessionResult, error)
	StopSession(ctx context.Context, userID string) (StopSessionResult, error)
	PublishPosition(ctx context.Context, in PublishPositionInput) (PublishPositionResult, error)

	Subscribe(ctx context.Context, readerID string, role user.Role, scope account.Scope) (*Subscription, error)
	Unsubscribe(subscriptionID string)
	Snapshot(ctx context.Context, readerID string, role user.Role, scope account.Scope) ([]PositionView, error)
	GetPosition(ctx context.Context, readerID string, role user.Role, vehicleID string) (PositionView, error)

	// RunBackground starts the idle-session sweeper, the subscription
	// revalidation loop, and the account-events consumer. It returns
	// once the loops are scheduled and they stop with ctx.
	RunBackground(ctx context.Context)
}

// AccessPolicy decides publish/subscribe authorization. It is
// recomputed on every call and injectable for tests.
type AccessPolicy interface {
	// AuthorizePublish returns the fresh account for userID, or
	// ErrNotFound / account.ErrInactive / a TransientError.
	AuthorizePublish(ctx context.Context, userID string) (*account.Account, error)
	// AuthorizeSubscribe returns ErrScopeForbidden when the reader may
	// not watch the scope.
	AuthorizeSubscribe(ctx context.Context, readerID string, role user.Role, scope account.Scope) error
}

// BrokerPublisher abstracts the message broker publish side.
type BrokerPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// ----- Fleetboard Service -----

// FleetOverviewResult aggregates fleet-wide metrics.
type FleetOverviewResult struct {
	Timestamp time.Time `json:"timestamp"`
	Metrics   struct {
		TotalVehicles    int                   `json:"total_vehicles"`
		ActiveVehicles   int                   `json:"active_vehicles"`
		ReportingLastMin int                   `json:"reporting_last_minute"`
		PerCompany       []CompanyVehicleCount `json:"per_company"`
	} `json:"metrics"`
}

// LiveVehicle is one entry of the in-memory live board.
type LiveVehicle struct {
	UserID     string    `json:"user_id"`
	CompanyID  string    `json:"company_id"`
	RouteID    string    `json:"route_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// FleetboardService exposes the boundary of the fleetboard service.
type FleetboardService interface {
	GetFleetOverview(ctx context.Context) (FleetOverviewResult, error)
	LiveVehicles() []LiveVehicle
	RunLiveFeed(ctx context.Context)
}
