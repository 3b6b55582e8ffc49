package service

import (
	"context"
	"errors"
	"sync"

	"fleet-track/internal/domain/geo"
	"fleet-track/internal/ports"
)

// storeEntry caches the latest accepted position for one vehicle. The
// per-entry lock serializes the monotonicity check with the write so
// two racing publishes cannot both pass it.
type storeEntry struct {
	mu     sync.Mutex
	latest *geo.Position
	loaded bool
}

// positionStore is a write-through cache in front of the position
// repository. Reads prefer the cache and fall back to the database for
// vehicles not seen since startup.
type positionStore struct {
	repo    ports.PositionRepository
	entries sync.Map
}

func newPositionStore(repo ports.PositionRepository) *positionStore {
	return &positionStore{repo: repo}
}

func (st *positionStore) entry(userID string) *storeEntry {
	if existing, ok := st.entries.Load(userID); ok {
		return existing.(*storeEntry)
	}

	actual, _ := st.entries.LoadOrStore(userID, &storeEntry{})
	return actual.(*storeEntry)
}

// Put persists position if it does not regress behind the latest
// accepted sample for the same vehicle. Regressions fail with
// geo.ErrStaleUpdate and leave the stored value untouched.
func (st *positionStore) Put(ctx context.Context, position *geo.Position) error {
	entry := st.entry(position.UserID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.loaded {
		prev, err := st.repo.Get(ctx, position.UserID)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return err
		}
		entry.latest = prev
		entry.loaded = true
	}

	if entry.latest != nil && !position.Advances(entry.latest) {
		return geo.ErrStaleUpdate
	}

	if err := st.repo.Upsert(ctx, position); err != nil {
		return err
	}

	entry.latest = position
	return nil
}

// Get returns the latest position for userID, or ports.ErrNotFound if
// the vehicle has never reported one.
func (st *positionStore) Get(ctx context.Context, userID string) (*geo.Position, error) {
	entry := st.entry(userID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.loaded {
		prev, err := st.repo.Get(ctx, userID)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		entry.latest = prev
		entry.loaded = true
	}

	if entry.latest == nil {
		return nil, ports.ErrNotFound
	}

	return entry.latest, nil
}

// ListByScope reads straight from the repository; fleet snapshots span
// many vehicles and the join there already filters by account scope.
func (st *positionStore) ListByScope(ctx context.Context, companyID, routeID string) ([]*geo.Position, error) {
	return st.repo.ListByScope(ctx, companyID, routeID)
}
