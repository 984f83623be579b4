package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-billing/internal/billing"
	httpmiddleware "github.com/wolfman30/clinic-billing/internal/http/middleware"
	"github.com/wolfman30/clinic-billing/internal/observability/metrics"
	"github.com/wolfman30/clinic-billing/internal/reporting"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	BillingHandler     *billing.Handler
	ReportHandler      *reporting.Handler
	JWTSecret          string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration

	// Limiter is optional; nil disables per-clinic rate limiting.
	Limiter httpmiddleware.Limiter
	Metrics *metrics.EngineMetrics

	MetricsHandler http.Handler
	// HealthCheck pings the record store; nil reports healthy.
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthCheck))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Clinic-scoped read models
	r.Route("/api/clinics/{clinicID}", func(api chi.Router) {
		api.Use(httpmiddleware.ClinicJWT(cfg.JWTSecret))
		api.Use(httpmiddleware.RequireClinicParam("clinicID"))
		if cfg.Limiter != nil {
			api.Use(httpmiddleware.ClinicRateLimit(cfg.Limiter, cfg.Metrics, cfg.Logger))
		}

		if cfg.BillingHandler != nil {
			api.Get("/billing", cfg.BillingHandler.ListClinicBilling)
			api.Get("/patients/{patientID}/ledger", cfg.BillingHandler.GetPatientLedger)
		}
		if cfg.ReportHandler != nil {
			api.Get("/reports/summary", cfg.ReportHandler.GetSummary)
		}
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
