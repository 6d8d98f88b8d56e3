package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/chain"
)

// DefaultSecretKey signs tokens when no secret is configured. Development only.
const DefaultSecretKey = "facetproxy-dev-secret-key-change-in-production"

// Server represents the HTTP API server
type Server struct {
	node       chain.Node
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	logger     *zap.Logger

	// cancelBase ends the request contexts of open receipt streams on Stop
	cancelBase context.CancelFunc
}

// Config holds server configuration
type Config struct {
	ListenAddress string
	SecretKey     string
	// NoAuth takes the caller identity from the X-Identity header instead of a token
	NoAuth bool
	// KeepAlive is the interval between comment pings on receipt streams
	KeepAlive time.Duration
	Logger    *zap.Logger
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	if c.SecretKey == "" {
		c.SecretKey = DefaultSecretKey
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// NewServer creates a new HTTP API server
func NewServer(node chain.Node, config Config) *Server {
	config.SetDefaults()
	logger := config.Logger.Named("httpapi")

	jwtAuth := NewJWTAuth(config.SecretKey)
	server := &Server{
		node:       node,
		jwtAuth:    jwtAuth,
		handlers:   NewHandlers(node, jwtAuth, config.KeepAlive, logger),
		middleware: NewMiddleware(jwtAuth, config.NoAuth, logger),
		logger:     logger,
	}
	if config.NoAuth {
		logger.Warn("authentication disabled, callers are taken from the " + IdentityHeader + " header")
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	server.cancelBase = cancel

	// Receipt streams are long-lived, so there is no write timeout.
	server.server = &http.Server{
		Addr:              config.ListenAddress,
		Handler:           server.setupRoutes(),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return server
}

// Handler returns the routed handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("http api listening", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Serve serves on an existing listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("http api listening", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.cancelBase()
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.Recovery(
			s.middleware.Logging(
				s.middleware.CORS(
					s.middleware.ContentType(handler))))
	}
	authed := func(handler http.HandlerFunc) http.Handler {
		return withMiddleware(s.middleware.AuthRequired(handler))
	}

	// Authentication endpoints (no auth required)
	mux.Handle("POST /api/v1/auth/login", withMiddleware(s.handlers.Login))

	// Read views (no auth required, no receipt recorded)
	mux.Handle("GET /api/v1/contracts", withMiddleware(s.handlers.ListContracts))
	mux.Handle("GET /api/v1/proxy/{addr}/owner", withMiddleware(s.handlers.ProxyOwner))
	mux.Handle("GET /api/v1/proxy/{addr}/routes", withMiddleware(s.handlers.ListRoutes))
	mux.Handle("GET /api/v1/proxy/{addr}/routes/{selector}", withMiddleware(s.handlers.GetRoute))

	// Proxy administration (sent as the authenticated caller)
	mux.Handle("PUT /api/v1/proxy/{addr}/routes/{selector}", authed(s.handlers.SetRoute))
	mux.Handle("DELETE /api/v1/proxy/{addr}/routes/{selector}", authed(s.handlers.DeleteRoute))
	mux.Handle("POST /api/v1/proxy/{addr}/ownership/transfer", authed(s.handlers.TransferOwnership))
	mux.Handle("POST /api/v1/proxy/{addr}/ownership/revoke", authed(s.handlers.RevokeOwnership))

	// Transactions
	mux.Handle("POST /api/v1/call", authed(s.handlers.Call))
	mux.Handle("GET /api/v1/tx", withMiddleware(s.handlers.ListTx))
	mux.Handle("GET /api/v1/tx/stats", withMiddleware(s.handlers.Stats))
	mux.Handle("GET /api/v1/tx/stream", withMiddleware(s.handlers.StreamTx))
	mux.Handle("GET /api/v1/tx/{id}", withMiddleware(s.handlers.GetTx))

	// Health endpoint (no auth required)
	mux.Handle("GET /api/v1/health", withMiddleware(s.handlers.Health))

	// Root endpoint with API info
	mux.Handle("/", withMiddleware(s.handleRoot))

	return mux
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "facetproxy HTTP API",
		"version":     "1.0.0",
		"description": "Administration and calls for facet-dispatch proxies",
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"contracts": "GET /api/v1/contracts",
			"proxy": map[string]string{
				"owner":    "GET /api/v1/proxy/{addr}/owner",
				"routes":   "GET /api/v1/proxy/{addr}/routes",
				"route":    "GET|PUT|DELETE /api/v1/proxy/{addr}/routes/{selector}",
				"transfer": "POST /api/v1/proxy/{addr}/ownership/transfer",
				"revoke":   "POST /api/v1/proxy/{addr}/ownership/revoke",
			},
			"tx": map[string]string{
				"call":   "POST /api/v1/call",
				"list":   "GET /api/v1/tx?from={height}&limit={n}",
				"get":    "GET /api/v1/tx/{id}",
				"stats":  "GET /api/v1/tx/stats",
				"stream": "GET /api/v1/tx/stream?from={height}&to={addr}",
			},
			"health": "GET /api/v1/health",
		},
		"authentication": "Bearer JWT token required for transactions",
	}

	s.writeJSON(w, info, http.StatusOK)
}

// writeError writes an error response as JSON
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
