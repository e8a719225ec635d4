package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/health"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/middleware"
)

// RouterConfig carries the knobs the router needs beyond its handlers.
type RouterConfig struct {
	CORS            middleware.CORSConfig
	PprofCIDRs      []string
	LoginRatePerSec float64
	LoginRateBurst  int
}

// NewRouter creates a chi router with all access service routes registered.
// Public routes carry only the ambient middleware; everything under the gate
// is authenticated, tenant-bound, and metered.
func NewRouter(
	authHandler *AuthHandler,
	usageHandler *UsageHandler,
	auditHandler *AuditHandler,
	gate *Gate,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("access"))
	r.Use(middleware.Tracing("access"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Public auth endpoints. Login is rate limited per client IP; the
	// password reset and email verification confirmations carry their own
	// single-use tokens.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.RateLimit(cfg.LoginRatePerSec, cfg.LoginRateBurst)).
			Post("/login", authHandler.Login)
		r.Post("/password-reset", authHandler.RequestPasswordReset)
		r.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)
		r.Post("/email-verification/confirm", authHandler.ConfirmEmailVerification)
	})

	// Authenticated auth endpoints. Every gated route feeds the audit trail;
	// session management is not metered against the API quota so a tenant at
	// its limit can still log out.
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(gate.Authenticate)
		r.Use(gate.AuditRequests)

		r.Get("/", authHandler.ListSessions)
		r.Post("/logout", authHandler.Logout)
		r.Post("/logout-all", authHandler.LogoutAll)
	})

	r.Route("/api/v1/account", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(gate.Authenticate)
		r.Use(gate.AuditRequests)

		r.Post("/change-password", authHandler.ChangePassword)
		r.Post("/email-verification", authHandler.RequestEmailVerification)
		r.Post("/api-tokens", authHandler.IssueAPIToken)
		r.Delete("/api-tokens", authHandler.RevokeAPIToken)
	})

	// Metered API endpoints.
	r.Route("/api/v1/usage", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(gate.Authenticate)
		r.Use(gate.AuditRequests)
		r.Use(gate.MeterAPIRequests)

		r.Get("/", usageHandler.GetUsage)
		r.Post("/check", usageHandler.CheckUsage)
		r.Post("/record", usageHandler.RecordUsage)
	})

	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(gate.Authenticate)
		r.Use(gate.AuditRequests)
		r.Use(gate.MeterAPIRequests)
		r.Use(gate.RequireCapability(domain.CapabilityAuditRead))

		r.Get("/", auditHandler.List)
	})

	return r
}
