package service

import (
	"context"
	"fmt"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/ports"
)

// registryPolicy is the default access policy. It resolves accounts
// through the account repository on every decision, so a deactivation
// takes effect on the next call without any cache invalidation.
type registryPolicy struct {
	accounts ports.AccountRepository
}

// NewRegistryPolicy builds the account-registry backed access policy.
func NewRegistryPolicy(accounts ports.AccountRepository) ports.AccessPolicy {
	return &registryPolicy{accounts: accounts}
}

func (p *registryPolicy) AuthorizePublish(ctx context.Context, userID string) (*account.Account, error) {
	acct, err := p.accounts.Lookup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("authorize publish for %s: %w", userID, err)
	}

	if err := acct.EnsureActive(); err != nil {
		return nil, err
	}

	return acct, nil
}

func (p *registryPolicy) AuthorizeSubscribe(ctx context.Context, readerID string, role user.Role, scope account.Scope) error {
	if !scope.Valid() {
		return fmt.Errorf("authorize subscribe: %w", ports.ErrScopeForbidden)
	}

	acct, err := p.accounts.Lookup(ctx, readerID)
	if err != nil {
		return fmt.Errorf("authorize subscribe for %s: %w", readerID, err)
	}

	if err := acct.EnsureActive(); err != nil {
		return err
	}

	switch {
	case role.IsDispatcher() || role.IsAdmin():
		return nil
	case role.IsVehicle():
		// A vehicle may watch itself or the fleet scope it belongs to.
		if scope.IsVehicle() && scope.VehicleID == readerID {
			return nil
		}
		if !scope.IsVehicle() && scope.CompanyID == acct.CompanyID && scope.RouteID == acct.RouteID {
			return nil
		}
		return ports.ErrScopeForbidden
	default:
		return ports.ErrScopeForbidden
	}
}
