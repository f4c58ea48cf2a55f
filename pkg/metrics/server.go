package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMetricsAddr = ":9090"
	DefaultMetricsPath = "/metrics"
	DefaultHealthPath  = "/health"
	DefaultReadyPath   = "/ready"
)

// Server exposes metrics and health probes over HTTP.
type Server struct {
	mu       sync.RWMutex
	server   *http.Server
	metrics  *Metrics
	health   *HealthChecker
	running  bool
	addr     string
	listener net.Listener
	log      *logrus.Entry
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

func WithHealthChecker(h *HealthChecker) ServerOption {
	return func(s *Server) { s.health = h }
}

func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// NewServer creates a metrics server. Without WithMetrics it serves a
// fresh metric set.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		addr: DefaultMetricsAddr,
		log:  logrus.WithField("component", "metrics"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s
}

// Handler returns the server's routes without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(DefaultMetricsPath, s.handleMetrics)
	mux.HandleFunc(DefaultHealthPath, s.handleHealth)
	mux.HandleFunc(DefaultReadyPath, s.handleReady)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("metrics server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.running = true

	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("metrics server stopped")
		}
	}(s.server)

	s.log.WithField("addr", listener.Addr().String()).Info("metrics server listening")
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.server
	s.running = false
	s.mu.Unlock()
	return server.Shutdown(ctx)
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, s.metrics.Format())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"healthy": true})
		return
	}
	status := s.health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ready := s.health == nil || s.health.IsReady()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": ready})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>AI-NFT Ledger</title></head>
<body>
<h1>AI-NFT Ledger Node</h1>
<p><a href="/metrics">Metrics</a></p>
<p><a href="/health">Health</a></p>
<p><a href="/ready">Ready</a></p>
</body>
</html>`)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
