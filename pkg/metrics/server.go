package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
)

// DefaultPort is used when ServerConfig.Port is zero.
const DefaultPort = 9090

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// HealthCheck reports whether a store (or anything else serve depends on)
// is usable.
type HealthCheck func(ctx context.Context) error

// ServerConfig configures the HTTP server started by "vfs serve".
type ServerConfig struct {
	Port int
}

// Server exposes the Prometheus registry on GET /metrics and the registered
// health checks on GET /healthz. /healthz answers "ok" when every check
// passes and 503 with one line per failing check otherwise.
type Server struct {
	srv  *http.Server
	port int

	mu     sync.Mutex
	checks map[string]HealthCheck

	stopOnce sync.Once
	stopErr  error
}

// NewServer creates a stopped server; Start serves it.
func NewServer(config ServerConfig) *Server {
	port := config.Port
	if port <= 0 {
		port = DefaultPort
	}

	s := &Server{port: port, checks: make(map[string]HealthCheck)}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", registryHandler())
	mux.HandleFunc("GET /healthz", s.health)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

func registryHandler() http.Handler {
	if reg := GetRegistry(); IsEnabled() && reg != nil {
		return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "metrics are disabled", http.StatusServiceUnavailable)
	})
}

// AddCheck registers check under name, replacing any check of that name.
func (s *Server) AddCheck(name string, check HealthCheck) {
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.Unlock()
	slices.Sort(names)

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var failures []string
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			logger.Warn("Health check %s failed: %v", name, err)
			failures = append(failures, name+": "+err.Error())
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if len(failures) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		for _, f := range failures {
			_, _ = fmt.Fprintln(w, f)
		}
		return
	}
	_, _ = fmt.Fprintln(w, "ok")
}

// Start listens on the configured port and serves until ctx is cancelled,
// then shuts down gracefully. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	logger.Info("Metrics server listening on %s", ln.Addr())

	served := make(chan error, 1)
	go func() { served <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return s.Stop(stopCtx)
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

// Stop shuts the server down. Later calls return the first call's result.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.stopErr = fmt.Errorf("metrics server shutdown: %w", err)
			return
		}
		logger.Debug("Metrics server stopped")
	})
	return s.stopErr
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the HTTP handler, for serving without a listener.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
