// Package httpapi exposes verification and interactive sessions over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/ahrav/go-veriai/internal/application"
	"github.com/ahrav/go-veriai/internal/ports"
)

// DefaultMaxInputBytes caps verification text when no limit is configured.
const DefaultMaxInputBytes = 64 * 1024

const serviceName = "veriai"

// Server routes HTTP requests to the session manager and the verifier.
type Server struct {
	sessions *application.SessionManager
	verifier ports.Verifier
	logger   *zap.Logger

	maxInputBytes  int
	corsOrigins    []string
	metricsHandler http.Handler
	upgrader       websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxInputBytes caps the size of text accepted for verification.
func WithMaxInputBytes(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxInputBytes = n
		}
	}
}

// WithCORSOrigins allows browser calls from origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMetricsHandler serves h on /metrics instead of the default Prometheus
// registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.metricsHandler = h
		}
	}
}

// NewServer returns a Server. sessions backs the /v1/sessions routes and
// verifier the stateless /v1/verify route.
func NewServer(sessions *application.SessionManager, verifier ports.Verifier, opts ...Option) *Server {
	s := &Server{
		sessions:       sessions,
		verifier:       verifier,
		logger:         zap.NewNop(),
		maxInputBytes:  DefaultMaxInputBytes,
		metricsHandler: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), otelgin.Middleware(serviceName))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.New(s.corsConfig()))
	}

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metricsHandler))

	v1 := r.Group("/v1")
	{
		v1.POST("/verify", s.verify)
		v1.GET("/example", s.example)

		v1.POST("/sessions", s.createSession)
		v1.GET("/sessions/:id", s.getSession)
		v1.DELETE("/sessions/:id", s.deleteSession)
		v1.PUT("/sessions/:id/input", s.setInput)
		v1.POST("/sessions/:id/submit", s.submit)
		v1.POST("/sessions/:id/clear", s.clear)
		v1.GET("/sessions/:id/ws", s.stream)
	}
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down,
// waiting up to shutdownTimeout for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readHeaderTimeout, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, readHeaderTimeout, shutdownTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, readHeaderTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(s.corsOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.corsOrigins
	}
	return cfg
}

// checkOrigin admits same-origin and non-browser clients, plus configured
// CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.corsOrigins, "*") || slices.Contains(s.corsOrigins, origin) {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn("request failed", fields...)
			return
		}
		s.logger.Debug("request", fields...)
	}
}
