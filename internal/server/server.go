// Package server exposes the product pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/product-research/internal/metrics"
	"github.com/sells-group/product-research/internal/pipeline"
)

// Runner produces a product record for a URL.
type Runner interface {
	Run(ctx context.Context, url string) (*pipeline.Result, error)
}

// Config configures the HTTP surface.
type Config struct {
	AllowedOrigins []string
	APIKeys        []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	runner  Runner
	cfg     Config
	limiter *clientLimiter
}

// New creates a Server. A zero RequestTimeout disables the per-request
// deadline; a zero RateLimitRPS disables rate limiting.
func New(runner Runner, cfg Config) *Server {
	s := &Server{runner: runner, cfg: cfg}
	if cfg.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return s
}

// Handler returns the root HTTP handler with all middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", headerSourcesScraped, headerSourcesSummarized},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware())
	r.Use(bearerAuth(s.cfg.APIKeys))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		if s.cfg.RequestTimeout > 0 {
			r.Use(chiMiddleware.Timeout(s.cfg.RequestTimeout))
		}
		r.Post("/api/product", s.handleProduct)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
