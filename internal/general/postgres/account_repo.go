package postgres

import (
	"context"
	"errors"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepo reads vehicle accounts using pgx and plain SQL. Accounts
// are written only by the external provisioning process, so this repo
// has no write path.
type AccountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo constructs a new AccountRepo.
func NewAccountRepo(pool *pgxpool.Pool) ports.AccountRepository {
	return &AccountRepo{pool: pool}
}

// Lookup fetches the account for userID. Absent rows map to
// ports.ErrNotFound; store failures are retried and then surfaced as a
// TransientError.
func (repo *AccountRepo) Lookup(ctx context.Context, userID string) (*account.Account, error) {
	var acct account.Account

	err := withRetry(ctx, "account_lookup", func(ctx context.Context) error {
		return repo.pool.QueryRow(ctx, `
			SELECT
				user_id,
				active,
				company_id,
				route_id,
				vehicle_name,
				created_at,
				updated_at
			FROM accounts
			WHERE user_id = $1
		`, userID).Scan(
			&acct.UserID,
			&acct.Active,
			&acct.CompanyID,
			&acct.RouteID,
			&acct.VehicleName,
			&acct.CreatedAt,
			&acct.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	return &acct, nil
}
