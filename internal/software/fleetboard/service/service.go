package service

import (
	"sync"

	"fleet-track/internal/general/logger"
	"fleet-track/internal/general/rabbitmq"
	"fleet-track/internal/ports"
)

// fleetboardService aggregates fleet metrics from the database and
// keeps an in-memory live board fed by the position fanout.
type fleetboardService struct {
	logger   *logger.Logger
	uow      ports.UnitOfWork
	metrics  ports.FleetMetricsRepository
	rabbitmq *rabbitmq.Client

	mu   sync.RWMutex
	live map[string]ports.LiveVehicle // key: user_id
}

// NewFleetboardService creates the fleetboard service. broker may be
// nil; the live board then stays empty and only overview works.
func NewFleetboardService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	metrics ports.FleetMetricsRepository,
	broker *rabbitmq.Client,
) ports.FleetboardService {
	return &fleetboardService{
		logger:   logger,
		uow:      uow,
		metrics:  metrics,
		rabbitmq: broker,
		live:     make(map[string]ports.LiveVehicle),
	}
}
