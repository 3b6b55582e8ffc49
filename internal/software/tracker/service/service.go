package service

import (
	"context"
	"time"

	"fleet-track/internal/general/logger"
	"fleet-track/internal/general/rabbitmq"
	"fleet-track/internal/ports"
)

// Options carries the tracking cadence knobs. Zero values fall back to
// the documented defaults.
type Options struct {
	PublishIntervalHint              time.Duration
	SessionIdleTimeout               time.Duration
	SubscriptionRevalidationInterval time.Duration
}

func (opts *Options) setDefaults() {
	if opts.PublishIntervalHint <= 0 {
		opts.PublishIntervalHint = 5 * time.Second
	}
	if opts.SessionIdleTimeout <= 0 {
		opts.SessionIdleTimeout = 3 * opts.PublishIntervalHint
	}
	if opts.SubscriptionRevalidationInterval <= 0 {
		opts.SubscriptionRevalidationInterval = 30 * time.Second
	}
}

// trackerService holds all dependencies required by the tracker service.
type trackerService struct {
	logger   *logger.Logger
	opts     Options
	policy   ports.AccessPolicy
	store    *positionStore
	sessions *sessionRegistry
	subs     *subscriptionRegistry
	pub      ports.BrokerPublisher
	rabbitmq *rabbitmq.Client
}

// NewTrackerService constructs the service with required dependencies.
// pub and broker may be nil (tests, broker-less deployments); event
// publication and the account-events consumer are skipped then.
func NewTrackerService(
	logger *logger.Logger,
	opts Options,
	policy ports.AccessPolicy,
	positions ports.PositionRepository,
	pub ports.BrokerPublisher,
	broker *rabbitmq.Client,
) ports.TrackerService {
	opts.setDefaults()

	return &trackerService{
		logger:   logger,
		opts:     opts,
		policy:   policy,
		store:    newPositionStore(positions),
		sessions: newSessionRegistry(),
		subs:     newSubscriptionRegistry(),
		pub:      pub,
		rabbitmq: broker,
	}
}

// RunBackground starts the idle-session sweeper, the subscription
// revalidation loop, and the account-events consumer. The loops stop
// when ctx is cancelled.
func (svc *trackerService) RunBackground(ctx context.Context) {
	go svc.runIdleSweeper(ctx)
	go svc.runSubscriptionRevalidation(ctx)

	if svc.rabbitmq != nil {
		go svc.consumeAccountEvents(ctx)
	}
}
