package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/olzhas-a/dispatch-core/config"
	"github.com/olzhas-a/dispatch-core/internal/adapter/http/handler"
	"github.com/olzhas-a/dispatch-core/internal/adapter/http/middleware"
	gateway "github.com/olzhas-a/dispatch-core/internal/adapter/ws"
	"github.com/olzhas-a/dispatch-core/internal/service/dispatch"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
)

const (
	serverIPAddress = "%s:%s"
	serviceName     = "dispatch"
)

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  config.Config
	log  logger.Logger
}

type handlers struct {
	request  *handler.Request
	settings *handler.Settings
	health   *handler.Health
	gateway  *gateway.Gateway
}

func New(
	cfg config.Config,
	dispatchService dispatch.Dispatch,
	verifier middleware.TokenVerifier,
	gw *gateway.Gateway,
	log logger.Logger,
) (*API, error) {
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if gw == nil {
		return nil, errors.New("realtime gateway is required")
	}

	routes := &handlers{
		request:  handler.NewRequest(dispatchService, log),
		settings: handler.NewSettings(dispatchService, log),
		health:   handler.NewHealth(serviceName, log),
		gateway:  gw,
	}

	mid := middleware.NewMiddleware(verifier, log)

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      mid,
		addr:   fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.Server.Port),
		cfg:    cfg,
		log:    log,
	}

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: api.withMiddleware(),
	}

	setupRoutes(api.mux, api.routes, api.m)

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies middlewares to the mux
func (a *API) withMiddleware() http.Handler {
	return a.m.Recover(a.m.RequestID(a.m.Metrics(serviceName)(a.m.Logging(a.m.Auth(a.mux)))))
}
