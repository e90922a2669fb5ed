// Package httpapi exposes signal ingestion, token rotation and tamper review over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"proctor-integrity/backend/internal/audit"
	identityservice "proctor-integrity/backend/internal/identity/service"
	"proctor-integrity/backend/internal/ingest"
	"proctor-integrity/backend/internal/server/middleware"
	"proctor-integrity/backend/internal/signal"
)

// maxBodyBytes bounds request bodies; a full batch of signals fits well below it.
const maxBodyBytes = 4 << 20

// Ingester ingests a signal batch for an authenticated user.
type Ingester interface {
	Ingest(ctx context.Context, userID string, signals []signal.Wire) (*ingest.BatchResult, error)
}

// TokenRotator rotates and revokes refresh tokens.
type TokenRotator interface {
	Refresh(ctx context.Context, refreshToken string) (*identityservice.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Reviewer marks tamper flags reviewed.
type Reviewer interface {
	MarkReviewed(ctx context.Context, reviewerID, flagID string) error
}

// ReadinessChecker reports whether backing dependencies are ready.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// Deps holds the services behind the HTTP API. Nil services answer 501 on their routes.
type Deps struct {
	Ingest Ingester
	Auth   TokenRotator
	Review Reviewer
	Health ReadinessChecker
	Tokens middleware.TokenValidator
	Audit  audit.AuditLogger
	// RateLimit configures the token bucket; Limiter is its Redis client and nil disables it.
	RateLimit middleware.RateLimitConfig
	Limiter   redis.Scripter
	// Registry receives the HTTP request metrics and backs /metrics. Nil serves the default registry.
	Registry *prometheus.Registry
}

// Server serves the HTTP API.
type Server struct {
	deps Deps
}

// NewServer returns an HTTP API server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the chi router with tracing, metrics, client IP, auth, rate limiting and audit middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)

	metricsHandler := promhttp.Handler()
	if s.deps.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(s.deps.Registry).Handler)
		metricsHandler = promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metricsHandler)

	authenticate := middleware.Authenticate(s.deps.Tokens)
	limit := s.rateLimit

	r.Route("/v1", func(r chi.Router) {
		r.With(limit("rl:auth")).Post("/auth/refresh", s.handleRefresh)
		r.With(limit("rl:auth")).Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Audit(s.deps.Audit))
			r.With(limit("rl:ingest")).Post("/signals/batch", s.handleSignalBatch)
			r.Post("/tamper-flags/{id}/review", s.handleReview)
		})
	})

	return otelhttp.NewHandler(r, "proctor.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) rateLimit(prefix string) func(http.Handler) http.Handler {
	cfg := s.deps.RateLimit
	cfg.Prefix = prefix
	return middleware.RateLimit(cfg, s.deps.Limiter)
}
