package ports

import (
	"context"
	"time"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/geo"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountRepository reads vehicle accounts provisioned by the fleet
// operator. There is no write path in this core.
type AccountRepository interface {
	// Lookup returns ErrNotFound for an absent account and a
	// TransientError for a retryable collaborator failure.
	Lookup(ctx context.Context, userID string) (*account.Account, error)
}

// PositionRepository persists the single latest position per user.
type PositionRepository interface {
	// Upsert overwrites the stored position for p.UserID. Rows with a
	// newer recorded_at than p are left untouched.
	Upsert(ctx context.Context, p *geo.Position) error
	Get(ctx context.Context, userID string) (*geo.Position, error)
	ListByScope(ctx context.Context, companyID, routeID string) ([]*geo.Position, error)
}

// CompanyVehicleCount is one row of the per-company fleet breakdown.
type CompanyVehicleCount struct {
	CompanyID string `json:"company_id"`
	Vehicles  int    `json:"vehicles"`
	Active    int    `json:"active"`
}

// FleetMetricsRepository serves the fleetboard aggregate queries.
type FleetMetricsRepository interface {
	CountAccounts(ctx context.Context) (int, error)
	CountActiveAccounts(ctx context.Context) (int, error)
	CountPositionsSince(ctx context.Context, since time.Time) (int, error)
	VehiclesPerCompany(ctx context.Context) ([]CompanyVehicleCount, error)
}
