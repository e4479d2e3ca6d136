// Package web provides the HTTP server for CSV conversion and ingestion.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/daana-health/daana-ingestion-backend/internal/config"
	"github.com/daana-health/daana-ingestion-backend/internal/core"
	"github.com/daana-health/daana-ingestion-backend/internal/web/middleware"
)

// Server is the HTTP server for the conversion service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.CORS(s.cfg.Server.CORSOrigins))
	s.router.Use(securityHeaders)
	s.router.Use(chimw.Compress(5, "application/json", "text/csv", "text/html"))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	if s.cfg.Rate.Enabled {
		s.router.Use(middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/schema", s.handleSchema)
	s.router.Get("/schema/{table}", s.handleSchemaTable)

	// Uploads call out to the mapping service, so they get their own
	// tighter budget on top of the global one.
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))
		if s.cfg.Rate.Enabled {
			r.Use(middleware.NewRateLimiter(s.cfg.Rate.ConvertLimit).Middleware)
		}
		r.Post("/convert", s.handleConvert)
		r.Post("/ingest", s.handleIngest)
	})
}

// Start begins listening on the configured address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
