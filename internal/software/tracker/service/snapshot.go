package service

import (
	"context"
	"errors"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/geo"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/ports"
)

func toView(position *geo.Position) ports.PositionView {
	return ports.PositionView{
		UserID:     position.UserID,
		Latitude:   position.Latitude,
		Longitude:  position.Longitude,
		RecordedAt: position.RecordedAt,
	}
}

// Snapshot returns the current positions inside scope after an access
// check. A scope with no reported positions yields an empty slice, not
// an error.
func (svc *trackerService) Snapshot(ctx context.Context, readerID string, role user.Role, scope account.Scope) ([]ports.PositionView, error) {
	if err := svc.policy.AuthorizeSubscribe(ctx, readerID, role, scope); err != nil {
		return nil, err
	}

	if scope.IsVehicle() {
		position, err := svc.store.Get(ctx, scope.VehicleID)
		if errors.Is(err, ports.ErrNotFound) {
			return []ports.PositionView{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []ports.PositionView{toView(position)}, nil
	}

	positions, err := svc.store.ListByScope(ctx, scope.CompanyID, scope.RouteID)
	if err != nil {
		return nil, err
	}

	views := make([]ports.PositionView, 0, len(positions))
	for _, position := range positions {
		views = append(views, toView(position))
	}
	return views, nil
}

// GetPosition returns the latest position of one vehicle, or
// ports.ErrNotFound when it has never reported.
func (svc *trackerService) GetPosition(ctx context.Context, readerID string, role user.Role, vehicleID string) (ports.PositionView, error) {
	scope := account.VehicleScope(vehicleID)
	if err := svc.policy.AuthorizeSubscribe(ctx, readerID, role, scope); err != nil {
		return ports.PositionView{}, err
	}

	position, err := svc.store.Get(ctx, vehicleID)
	if err != nil {
		return ports.PositionView{}, err
	}
	return toView(position), nil
}
