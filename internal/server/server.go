// Package server exposes the risk engine to the analysis service over
// HTTP. It is a thin adapter: handlers translate JSON into engine calls
// and engine errors into problem responses, with no scoring logic of
// their own.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantsentinel/surveil/internal/config"
	"github.com/quantsentinel/surveil/internal/health"
	"github.com/quantsentinel/surveil/internal/metrics"
	"github.com/quantsentinel/surveil/internal/ratelimit"
	"github.com/quantsentinel/surveil/internal/typology"
)

// Server wires the typology service into an HTTP listener.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *typology.Service
	healthz *health.Registry
	limiter *ratelimit.Limiter
	router  *gin.Engine
	httpSrv *http.Server
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds the server and its routes.
func New(cfg *config.Config, service *typology.Service, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		logger:  slog.Default(),
		service: service,
		healthz: health.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, t := range service.Typologies() {
		t := t
		s.healthz.Register(string(t), func(ctx context.Context) health.Status {
			model, err := service.Model(t)
			if err != nil {
				return health.Status{Healthy: false, Detail: err.Error()}
			}
			phase := model.Phase()
			return health.Status{Healthy: phase.String() == "ready", Detail: phase.String()}
		})
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", metrics.Handler())

	// The health and metrics endpoints stay unthrottled for scrapers.
	s.limiter = ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RateLimitRPS})
	v1 := router.Group("/api/v1")
	v1.Use(s.limiter.Middleware())
	s.registerRoutes(v1)

	s.router = router
	return s, nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run starts the listener and blocks until a shutdown signal or a
// server error.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "typologies", len(s.service.Typologies()))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}
	return s.Shutdown()
}

// Shutdown drains in-flight requests within the configured grace period.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownSeconds)*time.Second)
	defer cancel()
	s.limiter.Stop()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	healthy, statuses := s.healthz.CheckAll(c.Request.Context())
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": healthy, "subsystems": statuses})
}
