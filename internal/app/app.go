package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olzhas-a/dispatch-core/config"
	"github.com/olzhas-a/dispatch-core/internal/adapter/http/server"
	repo "github.com/olzhas-a/dispatch-core/internal/adapter/postgres"
	"github.com/olzhas-a/dispatch-core/internal/adapter/rabbit"
	rediscache "github.com/olzhas-a/dispatch-core/internal/adapter/redis"
	gateway "github.com/olzhas-a/dispatch-core/internal/adapter/ws"
	"github.com/olzhas-a/dispatch-core/internal/event"
	"github.com/olzhas-a/dispatch-core/internal/service/auth"
	"github.com/olzhas-a/dispatch-core/internal/service/dispatch"
	"github.com/olzhas-a/dispatch-core/internal/service/matcher"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	"github.com/olzhas-a/dispatch-core/pkg/postgres"
	rabbitmq "github.com/olzhas-a/dispatch-core/pkg/rabbit"
	redisclient "github.com/olzhas-a/dispatch-core/pkg/redis"
	"github.com/olzhas-a/dispatch-core/pkg/trm"
	ws "github.com/olzhas-a/dispatch-core/pkg/wsHub"
)

// App owns every long-lived resource of the dispatch service and wires
// them together.
type App struct {
	api     *server.API
	db      *postgres.PostgreDB
	broker  *rabbitmq.RabbitMQ
	hub     *ws.ConnectionHub
	limiter *gateway.Limiter

	cfg config.Config
	log logger.Logger
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	redisClient, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	broker, err := rabbitmq.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	// Storage
	requestRepo := repo.NewRequestRepo(db.Pool)
	driverRegistry := repo.NewDriverRegistry(db.Pool)
	settingsRepo := repo.NewSettingsRepo(db.Pool)
	settings := rediscache.NewSettingsCache(redisClient, settingsRepo, log)
	geoIndex := rediscache.NewGeoIndex(redisClient)
	txManager := trm.New(db.Pool)

	// Domain services
	bus := event.NewBus(log)
	matcherService := matcher.New(driverRegistry, geoIndex, log)
	dispatchService := dispatch.New(requestRepo, driverRegistry, matcherService, settings, geoIndex, bus, txManager, log)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, log)

	// Realtime gateway
	hub := ws.NewConnHub(log)
	limiter := gateway.NewLimiter(0)
	gw := gateway.New(verifier, dispatchService, hub, limiter, log)
	gw.Register(bus)

	// Push notification relay
	relay := rabbit.NewNotificationRelay(broker, log)
	relay.Register(bus)

	api, err := server.New(cfg, dispatchService, verifier, gw, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init http server: %w", err)
	}

	return &App{
		api:     api,
		db:      db,
		broker:  broker,
		hub:     hub,
		limiter: limiter,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Run starts the HTTP server and blocks until a shutdown signal or a fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	a.api.Run(ctx, errCh)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		a.log.Info(ctx, "received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		a.log.Error(ctx, "server failure", err)
		a.close(ctx)
		return err
	}

	if err := a.api.Stop(ctx); err != nil {
		a.log.Error(ctx, "graceful shutdown failed", err)
	}
	a.close(ctx)

	return nil
}

func (a *App) close(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	a.limiter.Stop()
	a.hub.Close()

	if err := a.broker.Close(closeCtx); err != nil {
		a.log.Warn(closeCtx, "failed to close rabbitmq connection", "error", err)
	}
	a.db.Pool.Close()
}
