// Package api is the HTTP and WebSocket transport for the recommendation
// core. It owns input validation and identity extraction; all domain
// decisions live in the packages it calls into.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cadenza-fm/cadenza/internal/health"
	"github.com/cadenza-fm/cadenza/internal/observe"
	"github.com/cadenza-fm/cadenza/internal/push"
	"github.com/cadenza-fm/cadenza/internal/recommend"
	"github.com/cadenza-fm/cadenza/internal/store"
)

// Deps bundles everything the server routes to. All fields are required
// except Log and Metrics.
type Deps struct {
	Gateway    store.Gateway
	Pipeline   *recommend.Pipeline
	Registry   *push.Registry
	PushEngine *push.Engine
	Health     *health.Handler

	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string

	Log     *slog.Logger
	Metrics *observe.Metrics
}

// Server routes the public API surface.
type Server struct {
	gw          store.Gateway
	pipeline    *recommend.Pipeline
	registry    *push.Registry
	pushEngine  *push.Engine
	corsOrigins []string

	log    *slog.Logger
	router chi.Router
}

// New builds the router with the full middleware stack. The returned server
// serves HTTP via [Server.Handler].
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		gw:          d.Gateway,
		pipeline:    d.Pipeline,
		registry:    d.Registry,
		pushEngine:  d.PushEngine,
		corsOrigins: d.CORSOrigins,
		log:         d.Log,
	}

	r := chi.NewRouter()

	// Order matters: the request ID and real IP must be in place before the
	// observability middleware logs the request, and the recoverer must wrap
	// the handlers but not the telemetry.
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(observe.Middleware(d.Metrics))
	r.Use(chimiddleware.Recoverer)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", HeaderExternalUserID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Probes and metrics stay outside the identity wall.
	r.Get("/health", d.Health.Health)
	r.Get("/readyz", d.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The push channel authenticates via the handshake query string.
	r.Get("/recommendations/ws", s.handleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(requireIdentity)
		pr.Get("/me", s.handleMe)
		pr.Put("/me/preferences", s.handlePreferences)
		pr.Get("/recommendations", s.handleRecommendations)
		pr.Post("/interactions", s.handleInteractions)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }
