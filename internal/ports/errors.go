package ports

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an absent entity. Callers expecting optional
	// results treat it as a normal outcome, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrScopeForbidden marks a subscription or snapshot denied by the
	// access policy.
	ErrScopeForbidden = errors.New("scope not allowed for this reader")
)

// TransientError wraps a collaborator failure that is worth retrying.
// It is deliberately distinct from ErrNotFound and the domain denials
// so a flaky dependency never masquerades as a deactivated account.
type TransientError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError, preserving nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
