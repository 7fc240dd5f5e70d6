// Package http serves the embedding and search API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/auth"
	"github.com/fyrsmithlabs/llmsearch/internal/docs"
	"github.com/fyrsmithlabs/llmsearch/internal/logging"
	"github.com/fyrsmithlabs/llmsearch/internal/search"
	"github.com/fyrsmithlabs/llmsearch/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Embedder produces one vector per text. *embeddings.Service satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher runs the search pipeline. *search.Service satisfies it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]vectorstore.Record, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// DefaultLimit applies when the limit query parameter is missing or
	// invalid.
	DefaultLimit int
	// MaxBodyBytes caps request bodies. Default: 1MB
	MaxBodyBytes int64
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Option customizes a Server.
type Option func(*Server)

// WithGatherer serves metrics from g on /metrics instead of the default
// Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHTTPMetrics records OTEL request metrics.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server provides the HTTP endpoints. Its dependencies are fixed at
// construction and shared read-only by all requests.
type Server struct {
	echo     *echo.Echo
	embedder Embedder
	searcher Searcher
	verifier *auth.Verifier
	logger   *zap.Logger
	config   *Config
	gatherer prometheus.Gatherer
	metrics  *HTTPMetrics
	tracer   trace.Tracer
}

// NewServer creates a new HTTP server.
func NewServer(embedder Embedder, searcher Searcher, verifier *auth.Verifier, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "0.0.0.0", Port: 8000}
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		embedder: embedder,
		searcher: searcher,
		verifier: verifier,
		logger:   logger,
		config:   cfg,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.RequestID())
	if s.tracer != nil {
		e.Use(s.tracing)
	}
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestContext)
	e.Use(s.requestLog)
	// Panics become errors inside requestLog so the access log and the
	// HTTP metrics record the 500.
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll:     true,
		DisableErrorHandler: true,
		LogErrorFunc:        s.logPanic,
	}))
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxBodyBytes, 10)))

	s.echo = e
	s.registerRoutes()
	return s, nil
}

// requestContext puts the request ID on the request context so that
// downstream logs carry it.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Run the error handler now so the logged status is final.
			c.Error(err)
		}
		duration := time.Since(start)

		req := c.Request()
		logging.ForContext(req.Context(), s.logger).Info("http request",
			zap.String("method", req.Method),
			zap.String("path", c.Path()),
			logging.URI("uri", req.URL),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", duration),
		)
		return nil
	}
}

func (s *Server) logPanic(c echo.Context, err error, stack []byte) error {
	logging.ForContext(c.Request().Context(), s.logger).Error("panic recovered",
		zap.Error(err),
		zap.ByteString("stack", stack),
	)
	return err
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", handleDocsRoot)
	s.echo.GET("/docs/*", echoSwagger.EchoWrapHandler(
		echoSwagger.URL("/docs/doc.json"),
		echoSwagger.InstanceName(docs.InstanceName),
	))
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	test := s.echo.Group("/test")
	test.GET("/health", s.handleHealth)
	test.GET("/test_migration", handleTrue)
	test.GET("/test_suite", handleTrue)
	test.POST("/embed", s.handleEmbed)

	sg := s.echo.Group("/search")
	sg.POST("/cosine_score", s.handleSearch(search.ModeCosine))
	sg.POST("/like_by_keyword_score", s.handleSearch(search.ModeKeyword))

	admin := s.echo.Group("/admin")
	admin.PATCH("/pre_processing", handleTrue)
	admin.POST("/insert", handleTrue)
	admin.PATCH("/update", handleTrue)
	admin.PATCH("/fine_tune", handleTrue)

	contact := s.echo.Group("/contact")
	contact.GET("/bot_auto_form", handleTrue)
	contact.POST("/send_mail", handleTrue)
}

// Handler exposes the router, for tests and embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
