package postgres

import (
	"context"
	"errors"

	"fleet-track/internal/domain/geo"
	"fleet-track/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PositionRepo persists the single latest position per user using pgx
// and plain SQL.
type PositionRepo struct {
	pool *pgxpool.Pool
}

// NewPositionRepo constructs a new PositionRepo.
func NewPositionRepo(pool *pgxpool.Pool) ports.PositionRepository {
	return &PositionRepo{pool: pool}
}

// Upsert overwrites the stored position for p.UserID. The WHERE guard
// on the conflict branch keeps an out-of-order write from regressing
// recorded_at if it slipped past the in-memory staleness check.
func (repo *PositionRepo) Upsert(ctx context.Context, p *geo.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}

	return withRetry(ctx, "position_upsert", func(ctx context.Context) error {
		_, err := repo.pool.Exec(ctx, `
			INSERT INTO positions (user_id, latitude, longitude, recorded_at, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (user_id) DO UPDATE
			SET latitude = EXCLUDED.latitude,
			    longitude = EXCLUDED.longitude,
			    recorded_at = EXCLUDED.recorded_at,
			    updated_at = now()
			WHERE positions.recorded_at <= EXCLUDED.recorded_at
		`, p.UserID, p.Latitude, p.Longitude, p.RecordedAt)
		return err
	})
}

// Get fetches the latest position for userID.
func (repo *PositionRepo) Get(ctx context.Context, userID string) (*geo.Position, error) {
	var p geo.Position

	err := withRetry(ctx, "position_get", func(ctx context.Context) error {
		return repo.pool.QueryRow(ctx, `
			SELECT user_id, latitude, longitude, recorded_at, updated_at
			FROM positions
			WHERE user_id = $1
		`, userID).Scan(&p.UserID, &p.Latitude, &p.Longitude, &p.RecordedAt, &p.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	return &p, nil
}

// ListByScope returns the latest positions of all vehicles whose
// account sits on the given (company, route) pair.
func (repo *PositionRepo) ListByScope(ctx context.Context, companyID, routeID string) ([]*geo.Position, error) {
	var out []*geo.Position

	err := withRetry(ctx, "position_list_by_scope", func(ctx context.Context) error {
		rows, err := repo.pool.Query(ctx, `
			SELECT p.user_id, p.latitude, p.longitude, p.recorded_at, p.updated_at
			FROM positions p
			JOIN accounts a ON a.user_id = p.user_id
			WHERE a.company_id = $1
			  AND a.route_id = $2
			ORDER BY p.user_id
		`, companyID, routeID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var p geo.Position
			if err := rows.Scan(&p.UserID, &p.Latitude, &p.Longitude, &p.RecordedAt, &p.UpdatedAt); err != nil {
				return err
			}
			out = append(out, &p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
