package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/jsrun/internal/api/http"
	"github.com/GriffinCanCode/jsrun/internal/api/middleware"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsrun/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsrun/internal/sandbox"
	"github.com/GriffinCanCode/jsrun/internal/sandbox/modules"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	resolver *modules.Resolver
	executor *sandbox.Executor
	router   *gin.Engine
	handler  http.Handler

	httpServer    *http.Server
	metricsServer *http.Server
	closeOnce     sync.Once
}

// Option customises a Server.
type Option func(*Server)

// WithLogger replaces the logger built from the config.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewWithLevel(cfg.EffectiveLogLevel(), cfg.Logging.Development)
	}
	logger := s.logger

	logger.Info("Initializing jsrun server",
		zap.String("addr", cfg.Addr()),
		zap.String("examples_dir", cfg.Sandbox.ExamplesDir),
		zap.Bool("verbose", cfg.Logging.Verbose),
	)

	s.metrics = monitoring.NewMetrics(monitoring.WithLogger(logger.Named("metrics")))
	s.tracer = tracing.New("jsrun", logger.Logger)

	resolver, err := modules.NewResolver(modules.Config{
		ExamplesDir:        cfg.Sandbox.ExamplesDir,
		NodeModulesDir:     cfg.Sandbox.NodeModulesDir,
		HostModulesEnabled: cfg.Sandbox.HostModulesEnabled,
	},
		modules.WithLogger(logger.Named("modules")),
		modules.WithObserver(func(kind modules.Kind, err error) {
			s.metrics.ObserveModuleLoad(string(kind), err)
		}),
	)
	if err != nil {
		s.release()
		return nil, fmt.Errorf("failed to create module resolver: %w", err)
	}
	s.resolver = resolver

	builder := sandbox.NewBuilder(resolver, logging.NewConsoleMirror(cfg.Logging.Verbose), s.metrics)
	s.executor = sandbox.NewExecutor(builder,
		sandbox.WithTimeout(cfg.Sandbox.ExecTimeout),
		sandbox.WithMaxConcurrent(cfg.Sandbox.MaxConcurrent),
		sandbox.WithLogger(logger.Named("sandbox")),
		sandbox.WithObserver(s.metrics),
	)
	logger.Info("Sandbox initialized",
		zap.Duration("exec_timeout", cfg.Sandbox.ExecTimeout),
		zap.Int64("max_concurrent", cfg.Sandbox.MaxConcurrent),
		zap.Bool("host_modules", cfg.Sandbox.HostModulesEnabled),
		zap.Strings("native_modules", resolver.NativeNames()),
	)

	s.router = s.buildRouter()
	s.handler = s.router
	if cfg.Server.CompressionEnabled {
		s.handler = gzhttp.GzipHandler(s.router)
		logger.Info("Response compression enabled")
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Logger),
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// every unmatched method or path is a plain 404
	router.HandleMethodNotAllowed = false
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(s.logger.Logger))
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	if cfg.Server.CORSEnabled {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := api.NewHandlers(s.executor, s.logger.Logger, s.tracer, api.Options{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	router.GET("/health", handlers.Health)
	router.POST("/run", handlers.Run)
	router.NoRoute(handlers.NotFound)

	return router
}

// Handler returns the root handler, compression included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Executor returns the snippet executor.
func (s *Server) Executor() *sandbox.Executor {
	return s.executor
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Run listens on the configured address and blocks until Shutdown.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and blocks until Shutdown. The metrics
// listener, when configured, is started alongside.
func (s *Server) Serve(ln net.Listener) error {
	if s.metricsServer != nil {
		logging.Go(s.logger.Logger, "metrics-server", func() {
			s.logger.Info("Starting metrics server", zap.String("addr", s.metricsServer.Addr))
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("Metrics server failed", zap.Error(err))
			}
		})
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires, then releases tracing and metrics.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	s.release()

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown incomplete", zap.Error(err))
		return err
	}
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) release() {
	s.closeOnce.Do(func() {
		s.tracer.Close()
		s.metrics.Close()
		_ = s.logger.Sync()
	})
}
