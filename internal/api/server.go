// Package api serves counterfactual screening over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/auth"
	"github.com/DominicTanzillo/Panacea/internal/conjunction"
	"github.com/DominicTanzillo/Panacea/internal/crossref"
	"github.com/DominicTanzillo/Panacea/internal/health"
	"github.com/DominicTanzillo/Panacea/internal/metrics"
	"github.com/DominicTanzillo/Panacea/internal/tle"
)

// Config holds HTTP server settings.
type Config struct {
	Addr       string
	Auth       auth.Config
	MaxPairs   int // neighbour count × sample count allowed per screening
	MaxPerIP   int // concurrent screenings per client
	TrustProxy bool
}

// Deps are the services the handlers call. Crossref may be nil.
type Deps struct {
	Store    *tle.Store
	Fetcher  *tle.Fetcher
	Screener *conjunction.Screener
	Crossref *crossref.Client
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	config     Config
	deps       Deps
	limiter    *screenLimiter
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.MaxPerIP < 1 {
		cfg.MaxPerIP = 4
	}
	s := &Server{
		config:  cfg,
		deps:    deps,
		limiter: newScreenLimiter(cfg.MaxPerIP, 16*cfg.MaxPerIP),
		logger:  logger,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler builds the routed handler with the middleware chain
// metrics -> logging -> auth -> mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(s.ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/screen", s.handleScreen)
	mux.HandleFunc("POST /api/v1/screen/batch", s.handleScreenBatch)
	mux.HandleFunc("GET /api/v1/neighbors", s.handleNeighbors)
	mux.HandleFunc("GET /api/v1/catalog/metadata", s.handleCatalogMetadata)
	mux.HandleFunc("POST /api/v1/catalog/fetch", s.handleCatalogFetch)
	mux.HandleFunc("GET /api/v1/crossref/{norad_id}", s.handleCrossref)

	var handler http.Handler = mux
	handler = auth.Middleware(s.config.Auth)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ready reports whether a catalog is loaded.
func (s *Server) ready() bool {
	return s.deps.Store != nil && s.deps.Store.Get() != nil
}

// healthPath returns true for health and readiness paths that should not log at INFO.
func healthPath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if healthPath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
