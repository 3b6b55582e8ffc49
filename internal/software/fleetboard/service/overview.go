package service

import (
	"context"
	"time"

	"fleet-track/internal/ports"
)

// GetFleetOverview collects aggregate metrics about the fleet. All
// counts come from one transaction so they describe the same instant.
func (service *fleetboardService) GetFleetOverview(ctx context.Context) (ports.FleetOverviewResult, error) {
	var res ports.FleetOverviewResult
	now := time.Now().UTC()
	res.Timestamp = now

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		total, err := service.metrics.CountAccounts(txCtx)
		if err != nil {
			return err
		}
		res.Metrics.TotalVehicles = total

		active, err := service.metrics.CountActiveAccounts(txCtx)
		if err != nil {
			return err
		}
		res.Metrics.ActiveVehicles = active

		reporting, err := service.metrics.CountPositionsSince(txCtx, now.Add(-time.Minute))
		if err != nil {
			return err
		}
		res.Metrics.ReportingLastMin = reporting

		perCompany, err := service.metrics.VehiclesPerCompany(txCtx)
		if err != nil {
			return err
		}
		res.Metrics.PerCompany = perCompany

		return nil
	})
	if err != nil {
		return ports.FleetOverviewResult{}, err
	}

	return res, nil
}
