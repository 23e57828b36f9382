// Package server provides the HTTP server and routing for the allocator API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/metrics"
)

// RequestTimeout bounds request/response API calls. Streams are exempt.
const RequestTimeout = 60 * time.Second

// RouteRegistrar mounts request/response routes under /api.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// StreamRegistrar mounts long-lived routes under /api, outside the request
// timeout.
type StreamRegistrar interface {
	RegisterStreamRoutes(r chi.Router)
}

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Port           int
	DevMode        bool
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Bus            *events.Bus
	System         *SystemHandlers
	Routes         []RouteRegistrar
	Streams        []StreamRegistrar
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	port    int
	metrics *metrics.Metrics
	system  *SystemHandlers
	events  *EventsStreamHandler
	routes  []RouteRegistrar
	streams []StreamRegistrar
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		port:    cfg.Port,
		metrics: cfg.Metrics,
		system:  cfg.System,
		routes:  cfg.Routes,
		streams: cfg.Streams,
	}
	if cfg.Bus != nil {
		s.events = NewEventsStreamHandler(cfg.Bus, cfg.Log)
	}

	s.setupMiddleware(cfg.DevMode, cfg.AllowedOrigins)
	s.setupRoutes()

	// No write timeout: streams stay open. Request handlers are bounded by
	// the timeout middleware instead.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool, allowedOrigins []string) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json", "application/msgpack"))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(RequestTimeout))
			for _, reg := range s.routes {
				reg.RegisterRoutes(r)
			}
			if s.system != nil {
				s.system.RegisterRoutes(r)
			}
		})

		r.Group(func(r chi.Router) {
			for _, reg := range s.streams {
				reg.RegisterStreamRoutes(r)
			}
			if s.events != nil {
				r.Get("/events/stream", s.events.ServeHTTP)
			}
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
