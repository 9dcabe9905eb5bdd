package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/newthinker/signalwatch/internal/api/handler/api"
	"github.com/newthinker/signalwatch/internal/api/middleware"
	"github.com/newthinker/signalwatch/internal/api/response"
	"github.com/newthinker/signalwatch/internal/metrics"
	"github.com/newthinker/signalwatch/internal/performance"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

// Server is the read-only HTTP API.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
	Location    *time.Location
}

// Dependencies are the components the handlers read from.
type Dependencies struct {
	Store     signal.Store
	Scheduler handler.StatsProvider
	Metrics   *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("signal store is required")
	}

	mux := http.NewServeMux()
	s := &Server{logger: logger, mux: mux}
	s.setupRoutes(cfg, deps)

	var h http.Handler = mux
	h = metrics.LoggingMiddleware(logger)(h)
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	signals := handler.NewSignalsHandler(deps.Store, cfg.Location)
	perf := handler.NewMetricsHandler(performance.NewEngine(deps.Store, cfg.Location), cfg.Location)
	jobs := handler.NewJobsHandler(deps.Scheduler)

	v1 := http.NewServeMux()
	v1.HandleFunc("GET /api/v1/metrics/trading", perf.Trading)
	v1.HandleFunc("GET /api/v1/metrics/profit-factor", perf.ProfitFactor)
	v1.HandleFunc("GET /api/v1/signals", signals.List)
	v1.HandleFunc("GET /api/v1/signals/{id}", signals.GetByID)
	v1.HandleFunc("GET /api/v1/jobs", jobs.Stats)

	s.mux.Handle("/api/v1/", middleware.APIKeyAuth(cfg.APIKey)(v1))
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
