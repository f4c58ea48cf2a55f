package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ServerConfig holds configuration for the RPC server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8899" or "127.0.0.1:8899")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxRequestSize is the maximum size of a request body in bytes.
	MaxRequestSize int64

	// AllowedOrigins for CORS (empty means allow all).
	AllowedOrigins []string

	EnableRateLimit bool
	RateLimitRPS    float64
	RateLimitBurst  float64
}

// DefaultServerConfig returns the defaults used by ainftd.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        ":8899",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxRequestSize: 64 * 1024,
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}
}

// Server is a JSON-RPC 2.0 server over a Ledger.
type Server struct {
	config   *ServerConfig
	handlers *Handlers
	log      *logrus.Entry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server. A nil config selects DefaultServerConfig.
func NewServer(config *ServerConfig, l Ledger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{
		config:   config,
		handlers: NewHandlers(l),
		log:      logrus.WithField("component", "rpc"),
	}
}

// Handler returns the JSON-RPC endpoint wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []Middleware{
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		CORSMiddleware(s.config.AllowedOrigins),
	}
	if s.config.EnableRateLimit {
		middlewares = append(middlewares, RateLimitMiddleware(s.config.RateLimitRPS, s.config.RateLimitBurst))
	}
	return Chain(http.HandlerFunc(s.handleRequest), middlewares...)
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("rpc server stopped")
		}
	}(s.server)

	s.log.WithField("addr", listener.Addr().String()).Info("rpc server listening")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeResponse(w, errorResponse(nil, NewRPCError(InvalidRequest, "only POST method is allowed")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, errorResponse(nil, NewRPCError(InvalidRequest, "failed to read request body")))
		return
	}

	if len(body) > 0 && body[0] == '[' {
		s.handleBatchRequest(w, body)
		return
	}
	s.writeResponse(w, s.processRequest(body))
}

func (s *Server) handleBatchRequest(w http.ResponseWriter, body []byte) {
	var requests []json.RawMessage
	if err := json.Unmarshal(body, &requests); err != nil {
		s.writeResponse(w, errorResponse(nil, NewRPCError(ParseError, "invalid JSON")))
		return
	}
	if len(requests) == 0 {
		s.writeResponse(w, errorResponse(nil, NewRPCError(InvalidRequest, "empty batch")))
		return
	}

	responses := make([]RPCResponse, 0, len(requests))
	for _, reqBody := range requests {
		response := s.processRequest(reqBody)
		// notifications get no response
		if response.ID != nil || response.Error != nil {
			responses = append(responses, response)
		}
	}
	s.writeResponse(w, responses)
}

func (s *Server) processRequest(body []byte) RPCResponse {
	var request RPCRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return errorResponse(nil, NewRPCError(ParseError, "invalid JSON"))
	}
	if request.JSONRPC != JSONRPCVersion {
		return errorResponse(request.ID, NewRPCError(InvalidRequest, "invalid jsonrpc version"))
	}

	handler := s.handlers.GetHandler(request.Method)
	if handler == nil {
		return errorResponse(request.ID, NewRPCError(MethodNotFound, fmt.Sprintf("method not found: %s", request.Method)))
	}

	result, rpcErr := handler(request.Params)
	if rpcErr != nil {
		s.log.WithFields(logrus.Fields{"method": request.Method, "code": rpcErr.Code}).Debug(rpcErr.Message)
		return errorResponse(request.ID, rpcErr)
	}
	return RPCResponse{JSONRPC: JSONRPCVersion, Result: result, ID: request.ID}
}

func errorResponse(id interface{}, rpcErr *RPCError) RPCResponse {
	return RPCResponse{JSONRPC: JSONRPCVersion, Error: rpcErr, ID: id}
}

func (s *Server) writeResponse(w http.ResponseWriter, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}
