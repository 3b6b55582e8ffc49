package trackerservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"fleet-track/internal/general/config"
	"fleet-track/internal/general/jwt"
	"fleet-track/internal/general/logger"
	"fleet-track/internal/general/postgres"
	"fleet-track/internal/general/rabbitmq"
	"fleet-track/internal/general/websocket"
	"fleet-track/internal/software/tracker/handler"
	"fleet-track/internal/software/tracker/service"
)

// Run wires the tracker service and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	// set up a new logger with a static request ID for startup logs
	logger := logger.New("tracker-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load config from file
	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// set up a Postgres connection pool
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// set up the RabbitMQ client (reconnecting)
	broker, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer broker.Close()

	// set up the JWT manager
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// set up the repositories and the access policy
	accountRepo := postgres.NewAccountRepo(pool)
	positionRepo := postgres.NewPositionRepo(pool)
	policy := service.NewRegistryPolicy(accountRepo)

	// set up the service with background loops
	svc := service.NewTrackerService(
		logger,
		service.Options{
			PublishIntervalHint:              cfg.Tracking.PublishIntervalHint.Std(),
			SessionIdleTimeout:               cfg.Tracking.SessionIdleTimeout.Std(),
			SubscriptionRevalidationInterval: cfg.Tracking.SubscriptionRevalidationInterval.Std(),
		},
		policy,
		positionRepo,
		rabbitmq.NewMQPublisher(broker),
		broker,
	)
	svc.RunBackground(ctx)

	// set up the WebSocket gateway, HTTP handler, and routes
	gateway := websocket.NewGateway(logger, jwtManager, svc)
	mux := http.NewServeMux()
	httpHandler := handler.NewTrackerHTTPHandler(svc, logger, jwtManager, gateway)
	httpHandler.RegisterRoutes(mux)

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Tracker service started on port %d", cfg.Services.TrackerServicePort),
		map[string]any{"port": cfg.Services.TrackerServicePort, "max_concurrent": maxConcurrent},
	)

	// set up the server configuration
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.TrackerServicePort),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0, // WebSocket connections write indefinitely
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// start the server in a background goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// wait for context cancellation or server error
	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err,
				map[string]any{"port": cfg.Services.TrackerServicePort})
			return err
		}
		return nil
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client went away while waiting for capacity
			http.Error(w, "server busy", http.StatusServiceUnavailable)
		}
	})
}
