package account

import (
	"errors"
	"strings"
	"time"
)

// Account is the per-vehicle record provisioned by the fleet operator.
// This core only reads accounts; creation and mutation happen in an
// external provisioning process.
type Account struct {
	UserID      string
	Active      bool
	CompanyID   string
	RouteID     string
	VehicleName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrInactive       = errors.New("account is inactive")
)

// Validate checks invariants of the Account entity.
func (acct *Account) Validate() error {
	if strings.TrimSpace(acct.UserID) == "" {
		return ErrUserIDRequired
	}
	return nil
}

// EnsureActive returns ErrInactive when the account is deactivated.
func (acct *Account) EnsureActive() error {
	if !acct.Active {
		return ErrInactive
	}
	return nil
}
