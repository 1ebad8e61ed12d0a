// Command orderflow runs the order intake API, the transactional outbox
// publisher, the delivery-status consumer, and the simulated
// inventory/delivery collaborators (started in every APP_ENV), all wired against a single
// event bus realization chosen by EVENT_BUS_DRIVER.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/elik56a/orderflow/internal/audit"
	"github.com/elik56a/orderflow/internal/breaker"
	"github.com/elik56a/orderflow/internal/config"
	"github.com/elik56a/orderflow/internal/delivery/simulated"
	"github.com/elik56a/orderflow/internal/domain"
	"github.com/elik56a/orderflow/internal/eventbus"
	"github.com/elik56a/orderflow/internal/eventbus/rabbitmq"
	invclient "github.com/elik56a/orderflow/internal/inventory"
	invsim "github.com/elik56a/orderflow/internal/inventory/simulated"
	"github.com/elik56a/orderflow/internal/orderservice"
	"github.com/elik56a/orderflow/internal/outbox"
	"github.com/elik56a/orderflow/internal/pkg/logger"
	"github.com/elik56a/orderflow/internal/statusconsumer"
	"github.com/elik56a/orderflow/internal/store/postgres"
	"github.com/elik56a/orderflow/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init()
	log := logger.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCtx, poolCancel := context.WithTimeout(ctx, cfg.DBConnectTimeout)
	pool, err := pgxpool.New(poolCtx, cfg.DBDSN)
	poolCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create postgres pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to reach postgres")
	}

	store := postgres.New(pool)

	cb := breaker.New(breaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		Timeout:          cfg.CircuitBreaker.Timeout,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
	})
	inventoryCollaborator := invsim.New(cfg.InventoryFailureRatePercent)
	inventoryClient := invclient.New(inventoryCollaborator, cb)

	bus, closeBus := newEventBus(ctx, cfg)
	defer closeBus()

	auditLogger := audit.New(log)
	orderSvc := orderservice.New(store, inventoryClient, auditLogger)

	var outboxPublisher *outbox.Publisher
	if cfg.OutboxEnabled {
		outboxPublisher = outbox.New(store, bus, auditLogger, outbox.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxRetries:   cfg.Outbox.MaxRetries,
			BaseDelay:    cfg.Outbox.BaseDelay,
			MaxDelay:     cfg.Outbox.MaxDelay,
		})
		outboxPublisher.Start(ctx)
	}

	statusUpdater := statusconsumer.New(orderSvc, auditLogger)
	if err := statusUpdater.Subscribe(bus); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe status consumer")
	}

	deliveryCollaborator := simulated.New(bus, 0, 0)
	if err := deliveryCollaborator.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start simulated delivery collaborator")
	}

	handler := rest.NewHandler(orderSvc)
	router := rest.NewRouter(rest.RouterDeps{Handler: handler, DBPool: pool})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("event_bus_driver", cfg.EventBusDriver).Msg("orderflow: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("orderflow: server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("orderflow: shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("orderflow: graceful shutdown failed")
	}
	if outboxPublisher != nil {
		outboxPublisher.Stop()
	}
}

// newEventBus realizes domain.EventBus with either the in-process
// fan-out bus (default) or a RabbitMQ-backed one, selected by
// EVENT_BUS_DRIVER. The returned func closes any broker connection and
// is always safe to defer, even for the in-process driver.
func newEventBus(ctx context.Context, cfg *config.Config) (domain.EventBus, func()) {
	if cfg.EventBusDriver != "rabbitmq" {
		return eventbus.New(), func() {}
	}

	bus := rabbitmq.New(cfg.RabbitURL, cfg.RabbitExchange)
	if err := bus.Connect(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("orderflow: failed to connect to rabbitmq")
	}
	return bus, func() { _ = bus.Close() }
}
