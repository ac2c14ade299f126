package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Yardman-Mzansi/potholematic/internal/http/handlers"
	httpmiddleware "github.com/Yardman-Mzansi/potholematic/internal/http/middleware"
	"github.com/Yardman-Mzansi/potholematic/internal/messaging"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	MessagingHandler *messaging.Handler
	AdminReports     *handlers.AdminReportsHandler
	AdminAuthSecret  string
	MetricsHandler   http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg == nil || cfg.MessagingHandler == nil {
		panic("router: messaging handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.MessagingHandler.HealthCheck)
		public.Post("/webhooks/twilio/messages", cfg.MessagingHandler.TwilioWebhook)
		// Path configured on the sandbox numbers before the webhooks/ prefix existed.
		public.Post("/pothole", cfg.MessagingHandler.TwilioWebhook)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.AdminReports != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.ScopeReportsRead))
			admin.Get("/reports", cfg.AdminReports.ListReports)
			admin.Get("/reports/{reportID}", cfg.AdminReports.GetReport)
		})
	}

	return r
}
