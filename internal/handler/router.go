package handler

import (
	"context"
	"net/http"

	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/port"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps bundles everything the router needs. All fields are required
// except Insights, which may be nil when no agent is configured.
type Deps struct {
	Store    port.BillStore
	DB       HealthChecker
	Coords   *service.CoordinatorSet
	Reports  *service.ReportService
	Sync     *service.SyncService
	Insights *service.InsightService
	Auth     *service.AuthService
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.DB))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Public
		r.Post("/auth/login", authLoginHandler(d.Auth, d.Logger))

		// Everything below requires a valid access token.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(d.Auth, d.Logger))

			r.Post("/auth/logout", authLogoutHandler(d.Coords))

			// Bills
			r.Get("/bills", listBillsHandler(d.Store, d.Logger))
			r.Post("/bills", createBillHandler(d.Store, d.Logger))
			r.Get("/bills/{billID}", getBillHandler(d.Store, d.Logger))
			r.Put("/bills/{billID}", updateBillHandler(d.Store, d.Logger))
			r.Delete("/bills/{billID}", deleteBillHandler(d.Store, d.Logger))

			// Budgets
			r.Get("/budgets/{period}", getBudgetHandler(d.Store, d.Logger))
			r.Put("/budgets/{period}", setBudgetHandler(d.Store, d.Logger))

			// Reports
			r.Get("/reports", getReportHandler(d.Coords, d.Store, d.Metrics, d.Logger))
			r.Get("/reports/summary", getReportSummaryHandler(d.Reports, d.Logger))
			r.Get("/metrics/reports", reportMetricsHandler(d.Metrics))

			// Insights
			r.Get("/insights", getInsightsHandler(d.Insights, d.Logger))

			// Sync
			r.Post("/sync/upload", syncUploadHandler(d.Sync, d.Logger))
			r.Get("/sync/download", syncDownloadHandler(d.Sync, d.Logger))
			r.Post("/sync/reconcile", syncReconcileHandler(d.Sync, d.Logger))
		})
	})

	return r
}

func healthzHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, map[string]string{"status": status})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
