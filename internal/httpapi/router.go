package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/talentforge/talentforge-api/internal/obs"
	"github.com/talentforge/talentforge-api/internal/users"
	"github.com/talentforge/talentforge-api/pkg/auth"
)

// HealthChecker reports readiness of a downstream dependency.
type HealthChecker func(ctx context.Context) error

// Server holds the handler dependencies and builds the router.
type Server struct {
	store         users.Store
	gate          *auth.Gate
	issuer        *auth.TokenIssuer
	logger        zerolog.Logger
	metrics       *obs.Metrics
	version       string
	corsOrigins   []string
	health        HealthChecker
	exposeDetails bool
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithHealthChecker adds a dependency probe to /health.
func WithHealthChecker(h HealthChecker) ServerOption {
	return func(s *Server) { s.health = h }
}

// WithVersion sets the string reported by /version.
func WithVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithErrorDetails includes structured error details in failure bodies.
// Enable outside production only.
func WithErrorDetails() ServerOption {
	return func(s *Server) { s.exposeDetails = true }
}

// NewServer assembles the HTTP layer.
func NewServer(store users.Store, gate *auth.Gate, issuer *auth.TokenIssuer, logger zerolog.Logger, metrics *obs.Metrics, opts ...ServerOption) *Server {
	s := &Server{
		store:   store,
		gate:    gate,
		issuer:  issuer,
		logger:  logger.With().Str("component", "httpapi").Logger(),
		metrics: metrics,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.gate.Authenticate).Post("/external", s.handleExternalSync)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.gate.Authenticate)
			r.With(s.gate.LoadUser).Get("/me", s.handleMe)
			r.Post("/profile/complete", s.handleCompleteProfile)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.gate.Authenticate)
			r.Use(s.gate.RequireAdmin)
			r.Get("/users", s.handleListUsers)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}
