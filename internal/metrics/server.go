package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves Prometheus metrics and a health probe via HTTP.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer
	logger   types.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new metrics server.
//
// Parameters:
//   - addr: Address to listen on (e.g., ":9090")
//   - gatherer: Registry to expose (uses prometheus.DefaultGatherer if nil)
//   - logger: Logger for server lifecycle events (no-op if nil)
//
// Returns:
//   - *Server: Initialized, not yet listening server
func NewServer(addr string, gatherer prometheus.Gatherer, logger types.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Server{addr: addr, gatherer: gatherer, logger: logger}
}

// Start binds the listen address and serves in the background.
//
// Returns:
//   - error: Error if the address cannot be bound
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.healthHandler)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("metrics server started", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.addr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("metrics server shutting down")

	return s.server.Shutdown(ctx)
}

// healthHandler handles health check requests.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK\n")
}
