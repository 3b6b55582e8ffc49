package postgres

import (
	"context"
	"time"

	"fleet-track/internal/ports"
)

// FleetMetricsRepo serves the fleetboard aggregate queries using pgx
// and plain SQL. All methods must run inside a UnitOfWork so the
// overview reads a consistent snapshot.
type FleetMetricsRepo struct{}

// NewFleetMetricsRepo constructs a new FleetMetricsRepo.
func NewFleetMetricsRepo() ports.FleetMetricsRepository {
	return &FleetMetricsRepo{}
}

// CountAccounts counts all provisioned vehicle accounts.
func (repo *FleetMetricsRepo) CountAccounts(ctx context.Context) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

// CountActiveAccounts counts accounts with the active flag set.
func (repo *FleetMetricsRepo) CountActiveAccounts(ctx context.Context) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE active = true`).Scan(&n)
	return n, err
}

// CountPositionsSince counts vehicles whose stored position was written
// after the given instant.
func (repo *FleetMetricsRepo) CountPositionsSince(ctx context.Context, since time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM positions WHERE updated_at >= $1`, since).Scan(&n)
	return n, err
}

// VehiclesPerCompany returns the per-company fleet breakdown.
func (repo *FleetMetricsRepo) VehiclesPerCompany(ctx context.Context) ([]ports.CompanyVehicleCount, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT
			company_id,
			COUNT(*) AS vehicles,
			COUNT(*) FILTER (WHERE active = true) AS active
		FROM accounts
		GROUP BY company_id
		ORDER BY company_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.CompanyVehicleCount
	for rows.Next() {
		var row ports.CompanyVehicleCount
		if err := rows.Scan(&row.CompanyID, &row.Vehicles, &row.Active); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
