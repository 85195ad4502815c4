package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/infra/observability"
	"github.com/AnsKM/dealflow-crm/internal/insights"
	"github.com/AnsKM/dealflow-crm/internal/port"
	"github.com/AnsKM/dealflow-crm/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const pingTimeout = 2 * time.Second

// Services bundles what the router serves. Nil services are allowed for
// routes a caller never hits, which keeps operational tests small.
type Services struct {
	Auth       *service.AuthService
	Deals      *service.DealService
	Activities *service.ActivityService
	Webhooks   *service.WebhookService
	Insights   *insights.Aggregator

	// Pingers are checked by /healthz.
	Pingers     []port.Pinger
	CORSOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(svc.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   svc.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", service.SignatureHeader},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Pingers, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Auth
		// =============================================
		r.Post("/auth/register", authRegisterHandler(svc.Auth, logger))
		r.Post("/auth/login", authLoginHandler(svc.Auth, logger))

		// =============================================
		// Automation webhooks (HMAC signed, no JWT)
		// =============================================
		r.Get("/webhooks/test", webhookTestHandler(svc.Webhooks))
		r.Post("/webhooks/{hook}", webhookHandler(svc.Webhooks, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svc.Auth, logger))

			r.Get("/auth/me", authMeHandler(svc.Auth, logger))

			// =============================================
			// Deals
			// =============================================
			r.Route("/deals", func(r chi.Router) {
				r.Post("/", createDealHandler(svc.Deals, logger))
				r.Get("/", listDealsHandler(svc.Deals, logger))

				// Fixed paths are registered before /{dealId}.
				r.Get("/insights", insightsHandler(svc.Insights, logger))
				r.Get("/export", exportDealsHandler(svc.Deals, logger))
				r.Post("/import", importDealsHandler(svc.Deals, logger))
				r.Post("/bulk", bulkCreateHandler(svc.Deals, logger))
				r.Patch("/bulk/stage", bulkStageHandler(svc.Deals, logger))
				r.Post("/bulk/delete", bulkDeleteHandler(svc.Deals, logger))

				r.Get("/{dealId}", getDealHandler(svc.Deals, logger))
				r.Patch("/{dealId}", updateDealHandler(svc.Deals, logger))
				r.Delete("/{dealId}", deleteDealHandler(svc.Deals, logger))
			})

			// =============================================
			// Activities
			// =============================================
			r.Post("/activities", createActivityHandler(svc.Activities, logger))
			r.Get("/activities/deal/{dealId}", listActivitiesHandler(svc.Activities, logger))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(pingers []port.Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "dealflow-api", Status: "healthy", LastChecked: now},
		}
		overall := "healthy"

		for _, p := range pingers {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			start := time.Now()
			err := p.Ping(ctx)
			cancel()

			s := domain.ServiceHealth{
				Name:        p.Name(),
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				logger.Warn("health check failed", zap.String("service", p.Name()), zap.Error(err))
				s.Status = "unhealthy"
				s.Error = err.Error()
				overall = "degraded"
			}
			services = append(services, s)
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// principal returns the caller injected by JWTAuthMiddleware.
func principal(r *http.Request) domain.Principal {
	p, _ := PrincipalFromContext(r.Context())
	return p
}
