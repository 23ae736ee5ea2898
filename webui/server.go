package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"imagestream/core"
	"imagestream/logging"
	"imagestream/metrics"
)

// Routes served by Server.
const (
	PathGenerate    = "/api/generate"
	PathGenerations = "/api/generations"
	PathProxyImages = "/api/images/generations"
	PathHealth      = "/health"
	PathMetrics     = "/metrics"
	PathWebSocket   = "/ws"

	// pathAPIPrefix routes unknown /api/ paths to the proxy's JSON 404.
	pathAPIPrefix = "/api/"
)

// Server is the HTTP server organism. It wires together:
//   - GenerateAPI for background generations and history
//   - ImageProxy for browser calls to the upstream API
//   - WebSocketBroadcaster for delivery events
//   - LoggingMiddleware for request logs and HTTP metrics
//   - the Prometheus handler on /metrics
type Server struct {
	httpServer  *http.Server
	mux         *http.ServeMux
	config      ServerConfig
	logger      *logging.Logger
	loggingMw   *LoggingMiddleware
	api         *GenerateAPI
	proxy       *ImageProxy
	broadcaster *WebSocketBroadcaster
	collector   *metrics.Collector

	// jobCancel stops background generations; bcastCancel stops the broadcaster.
	jobCancel   context.CancelFunc
	bcastCancel context.CancelFunc
}

// ServerConfig configures the Server.
type ServerConfig struct {
	// Host to bind to (default: all interfaces)
	Host string

	// Port to listen on (default: 8001)
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// ShutdownTimeout bounds graceful shutdown, including in-flight generations.
	ShutdownTimeout time.Duration

	// LogSkipPaths are not logged or counted.
	LogSkipPaths []string

	// Version is reported to WebSocket clients.
	Version string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            core.DefaultPort,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		LogSkipPaths:    []string{PathHealth, PathMetrics},
		Version:         core.Version,
	}
}

// ServerConfigFromCore applies the port and upstream timeout from cfg. The
// write timeout leaves room for a full upstream call through the proxy.
func ServerConfigFromCore(cfg *core.Config) ServerConfig {
	sc := DefaultServerConfig()
	sc.Port = cfg.Port
	if cfg.AITimeout > 0 {
		sc.WriteTimeout = cfg.AITimeout + 30*time.Second
	}
	return sc
}

// ServerDeps are the components the server exposes. Collector and Proxy are
// optional.
type ServerDeps struct {
	Generator Generator
	Collector *metrics.Collector
	Proxy     *ImageProxy
	Defaults  core.GenerationDefaults
}

// NewServer creates a Server and starts its broadcaster. Call Shutdown to
// release it even if ListenAndServe is never called.
func NewServer(config ServerConfig, deps ServerDeps, logger *logging.Logger) (*Server, error) {
	if deps.Generator == nil {
		return nil, errors.New("webui: generator is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("webui")

	bcastCtx, bcastCancel := context.WithCancel(context.Background())
	jobCtx, jobCancel := context.WithCancel(context.Background())

	broadcaster := NewWebSocketBroadcasterWithConfig(BroadcasterConfig{
		Version: config.Version,
		Logger:  logger,
	})
	go broadcaster.Start(bcastCtx)

	var store *metrics.Store
	loggers := []RequestLogger{ZapRequestLogger{Logger: logger}}
	if deps.Collector != nil {
		store = deps.Collector.Store()
		loggers = append(loggers, MetricsRequestLogger{Recorder: deps.Collector})
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: config,
		logger: logger,
		loggingMw: NewLoggingMiddlewareWithConfig(LoggingMiddlewareConfig{
			Loggers:   loggers,
			SkipPaths: config.LogSkipPaths,
		}),
		api:         NewGenerateAPI(jobCtx, deps.Generator, broadcaster, store, deps.Defaults, logger),
		proxy:       deps.Proxy,
		broadcaster: broadcaster,
		collector:   deps.Collector,
		jobCancel:   jobCancel,
		bcastCancel: bcastCancel,
	}
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("Server created",
		zap.String("addr", addr),
		zap.Bool("proxy_enabled", deps.Proxy != nil),
		zap.Bool("metrics_enabled", deps.Collector != nil))
	return s, nil
}

func (s *Server) setupRoutes() {
	s.api.RegisterRoutes(s.mux)
	s.mux.HandleFunc(PathWebSocket, s.broadcaster.HandleConnection)

	if s.collector != nil {
		s.mux.Handle(PathMetrics, s.collector.Handler())
	}
	if s.proxy != nil {
		s.mux.Handle(PathProxyImages, s.proxy)
		s.mux.Handle(pathAPIPrefix, s.proxy)
	}
}

// Handler returns the mux wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.loggingMw.Handler(s.mux)
}

// ListenAndServe listens on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("webui: listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webui: http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting requests, waits up to ShutdownTimeout for
// in-flight generations, then cancels the rest and disconnects clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		err = fmt.Errorf("webui: http shutdown: %w", err)
	}

	jobsDone := make(chan struct{})
	go func() {
		s.api.Wait()
		close(jobsDone)
	}()
	select {
	case <-jobsDone:
	case <-ctx.Done():
		s.logger.Warn("Cancelling in-flight generations")
		s.jobCancel()
		<-jobsDone
	}
	s.jobCancel()
	s.bcastCancel()
	select {
	case <-s.broadcaster.Stopped():
	case <-ctx.Done():
		// Pump writes carry their own deadline, so the wait stays bounded.
		select {
		case <-s.broadcaster.Stopped():
		case <-time.After(s.broadcaster.writeWait):
			s.logger.Warn("Broadcaster did not stop in time")
		}
	}

	s.logger.Info("Server stopped")
	return err
}

// Broadcaster returns the WebSocket broadcaster.
func (s *Server) Broadcaster() *WebSocketBroadcaster {
	return s.broadcaster
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
