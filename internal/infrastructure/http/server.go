package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rezkam/housekeeping/internal/infrastructure/http/handler"
	mw "github.com/rezkam/housekeeping/internal/infrastructure/http/middleware"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/response"
)

// Defaults used for zero ServerConfig fields. An empty host listens on all interfaces.
const (
	DefaultPort              = "8080"
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 2 * time.Minute
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
	DefaultMaxBodyBytes      = 10 << 20 // photo uploads go through the same limit
)

// ServerConfig configures the listener and router. TLS is served when both
// TLSCertFile and TLSKeyFile are set.
type ServerConfig struct {
	Host, Port        string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	TLSCertFile       string
	TLSKeyFile        string
}

func (cfg *ServerConfig) applyDefaults() {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	cfg.ReadTimeout = orDefault(cfg.ReadTimeout, DefaultReadTimeout)
	cfg.WriteTimeout = orDefault(cfg.WriteTimeout, DefaultWriteTimeout)
	cfg.IdleTimeout = orDefault(cfg.IdleTimeout, DefaultIdleTimeout)
	cfg.ReadHeaderTimeout = orDefault(cfg.ReadHeaderTimeout, DefaultReadHeaderTimeout)
	cfg.MaxHeaderBytes = orDefault(cfg.MaxHeaderBytes, DefaultMaxHeaderBytes)
	cfg.MaxBodyBytes = orDefault(cfg.MaxBodyBytes, DefaultMaxBodyBytes)
}

func orDefault[T int | int64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// HealthChecker reports whether the task store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// APIServer owns the net/http server for the housekeeping API.
type APIServer struct {
	server   *http.Server
	certFile string
	keyFile  string
	tls      bool
}

// NewAPIServer builds the server. The API is mounted under /api/v1, stored
// photos under /photos and a store probe under /health. health may be nil.
func NewAPIServer(h *handler.Handler, health HealthChecker, cfg ServerConfig) *APIServer {
	cfg.applyDefaults()

	return &APIServer{
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
			Handler:           otelhttp.NewHandler(newRouter(h, health, cfg.MaxBodyBytes), "housekeeping"),
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		certFile: cfg.TLSCertFile,
		keyFile:  cfg.TLSKeyFile,
		tls:      cfg.TLSCertFile != "" && cfg.TLSKeyFile != "",
	}
}

func newRouter(h *handler.Handler, health HealthChecker, maxBody int64) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(mw.MaxBodyBytes(maxBody))

	r.Get("/health", healthHandler(health))
	r.Mount("/api/v1", h.Routes())
	r.Get("/photos/*", h.ServePhoto)
	return r
}

func healthHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.Ping(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "health check failed", "error", err)
				response.Error(w, response.CodeServiceUnavailable, "task store unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		response.OK(w, map[string]string{"status": "ok"})
	}
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (s *APIServer) Start() error {
	slog.Info("HTTP server listening", "addr", s.server.Addr, "tls", s.tls)
	if s.tls {
		return s.server.ListenAndServeTLS(s.certFile, s.keyFile)
	}
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests until
// ctx ends. Hijacked websocket connections are not tracked by the server; they end
// when the change feed they subscribe to closes.
func (s *APIServer) Shutdown(ctx context.Context) error {
	slog.Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Handler returns the instrumented router.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}
