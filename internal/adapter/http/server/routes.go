package server

import (
	"net/http"

	"github.com/olzhas-a/dispatch-core/internal/adapter/http/middleware"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	// System Health
	mux.HandleFunc("/health", routes.health.HealthCheck)

	setupSwaggerRoutes(mux)
	setupMetricsRoute(mux)

	setupRequestRoutes(mux, routes, m)
	setupAdminRoutes(mux, routes, m)

	// Realtime gateway. Auth happens inside the websocket handshake, the
	// token may arrive via header or query parameter.
	mux.HandleFunc("GET /ws", routes.gateway.HandleWS)
}

// setupRequestRoutes setups the trip request lifecycle routes
func setupRequestRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /requests", m.RequireRoles(routes.request.Create, types.RoleUser))        // Create a trip request
	mux.Handle("GET /requests", m.RequireRoles(routes.request.List, types.RoleUser))          // List own trip requests
	mux.Handle("GET /requests/{request_id}", m.RequireRoles(routes.request.Get))              // Get a trip request (owner, assigned driver or admin)
	mux.Handle("POST /requests/{request_id}/accept", m.RequireRoles(routes.request.Accept, types.RoleDriver)) // Driver accepts a pending request
	mux.Handle("POST /requests/{request_id}/cancel", m.RequireRoles(routes.request.Cancel, types.RoleUser, types.RoleAdmin, types.RoleSuperAdmin)) // Cancel a request
	mux.Handle("POST /requests/{request_id}/status", m.RequireRoles(routes.request.UpdateStatus, types.RoleDriver, types.RoleAdmin, types.RoleSuperAdmin))
	mux.Handle("POST /fees/quote", m.RequireRoles(routes.request.QuoteFee)) // Quote a fee, any authenticated caller
}

// setupAdminRoutes setups dispatcher/admin only routes
func setupAdminRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /requests/{request_id}/assign", m.RequireRoles(routes.request.Assign, types.RoleAdmin, types.RoleSuperAdmin))
	mux.Handle("POST /requests/{request_id}/assign-auto", m.RequireRoles(routes.request.AssignAuto, types.RoleAdmin, types.RoleSuperAdmin))
	mux.Handle("POST /requests/{request_id}/recalculate-fare", m.RequireRoles(routes.request.RecalculateFare, types.RoleAdmin, types.RoleSuperAdmin))
	mux.Handle("GET /admin/settings/pricing", m.RequireRoles(routes.settings.GetPricing, types.RoleAdmin, types.RoleSuperAdmin))
	mux.Handle("PUT /admin/settings/pricing", m.RequireRoles(routes.settings.PutPricing, types.RoleAdmin, types.RoleSuperAdmin))
}

// setupSwaggerRoutes configures the Swagger UI endpoint
func setupSwaggerRoutes(mux *http.ServeMux) {
	swaggerURL := httpSwagger.InstanceName("dispatch")
	mux.HandleFunc("/swagger/", httpSwagger.Handler(swaggerURL))
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
