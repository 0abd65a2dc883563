// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/prajukk/backed-traffic/api/middleware"
	"github.com/prajukk/backed-traffic/api/resources"
	"github.com/prajukk/backed-traffic/api/ws"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/trafficservice"
)

// RouterConfig bundles the dependencies of the HTTP surface.
type RouterConfig struct {
	Service       *trafficservice.TrafficService
	Auth          *middleware.AuthMiddleware
	Live          *ws.Handler
	AllowedOrigin string
}

// NewRouter assembles the REST and live-channel routes. Reads are open to
// every authenticated role; mutations require operator or admin.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.Handle("/ws", cfg.Live)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(cfg.Auth.Authenticate)

	mutate := cfg.Auth.RequireRoles(models.RoleAdmin, models.RoleOperator)

	cameras := resources.NewCameraHandler(cfg.Service)
	apiRouter.HandleFunc("/cameras", cameras.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/cameras/{id}", cameras.Get).Methods(http.MethodGet)
	apiRouter.Handle("/cameras", mutate(http.HandlerFunc(cameras.Create))).Methods(http.MethodPost)
	apiRouter.Handle("/cameras/{id}", mutate(http.HandlerFunc(cameras.Update))).Methods(http.MethodPut)
	apiRouter.Handle("/cameras/{id}/settings", mutate(http.HandlerFunc(cameras.UpdateSettings))).Methods(http.MethodPut)
	apiRouter.Handle("/cameras/{id}", mutate(http.HandlerFunc(cameras.Delete))).Methods(http.MethodDelete)

	signals := resources.NewSignalHandler(cfg.Service)
	apiRouter.HandleFunc("/signals", signals.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/signals/{id}", signals.Get).Methods(http.MethodGet)
	apiRouter.Handle("/signals", mutate(http.HandlerFunc(signals.Create))).Methods(http.MethodPost)
	apiRouter.Handle("/signals/{id}", mutate(http.HandlerFunc(signals.Update))).Methods(http.MethodPut)
	apiRouter.Handle("/signals/{id}/settings", mutate(http.HandlerFunc(signals.UpdateSettings))).Methods(http.MethodPut)
	apiRouter.Handle("/signals/{id}", mutate(http.HandlerFunc(signals.Delete))).Methods(http.MethodDelete)

	analytics := resources.NewAnalyticsHandler(cfg.Service)
	apiRouter.HandleFunc("/analytics", analytics.Query).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analytics/trend", analytics.Trend).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analytics/junction/{id}", analytics.QueryJunction).Methods(http.MethodGet)

	dashboard := resources.NewDashboardHandler(cfg.Service)
	apiRouter.HandleFunc("/dashboard/overview", dashboard.Overview).Methods(http.MethodGet)
	apiRouter.HandleFunc("/dashboard/hotspots", dashboard.Hotspots).Methods(http.MethodGet)
	apiRouter.HandleFunc("/dashboard/alert-zones", dashboard.AlertZones).Methods(http.MethodGet)

	return withCORS(cfg.AllowedOrigin, router)
}

func withCORS(origin string, h http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return handlers.CORS(
		handlers.AllowedOrigins([]string{origin}),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
