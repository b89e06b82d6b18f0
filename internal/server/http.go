package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/dida365-mcp/internal/instrumentation"
)

// Routes served by the streamable HTTP transport.
const (
	RouteMCP            = "/mcp"
	RouteHealthz        = "/healthz"
	RouteReadyz         = "/readyz"
	RouteHealthDetailed = "/healthz/detailed"

	// TransportStreamableHTTP labels session metrics for this transport.
	TransportStreamableHTTP = "streamable-http"
)

// HTTPServerConfig configures the streamable HTTP transport.
type HTTPServerConfig struct {
	// DisableStreaming answers every request with a single JSON response.
	DisableStreaming bool
	// ReadHeaderTimeout defaults to 10s.
	ReadHeaderTimeout time.Duration
	// IdleTimeout defaults to 120s.
	IdleTimeout time.Duration
}

// HTTPServer serves an MCP server over the streamable HTTP transport next to
// the health endpoints.
type HTTPServer struct {
	mcpServer *mcpserver.MCPServer
	sc        *ServerContext
	health    *HealthChecker
	config    HTTPServerConfig

	mu         sync.Mutex
	httpServer *http.Server
}

// NewHTTPServer creates the HTTP transport for mcpSrv.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, sc *ServerContext, config HTTPServerConfig) *HTTPServer {
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = 10 * time.Second
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 120 * time.Second
	}
	return &HTTPServer{
		mcpServer: mcpSrv,
		sc:        sc,
		health:    NewHealthChecker(sc),
		config:    config,
	}
}

// HealthChecker returns the health checker backing /healthz and /readyz.
func (s *HTTPServer) HealthChecker() *HealthChecker {
	return s.health
}

// Handler returns the full HTTP handler: /mcp, the health endpoints and
// request metrics.
func (s *HTTPServer) Handler() http.Handler {
	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(RouteMCP),
	}
	if s.config.DisableStreaming {
		opts = append(opts, mcpserver.WithDisableStreaming(true))
	}
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer, opts...)

	mux := http.NewServeMux()
	mux.Handle(RouteMCP, streamable)
	s.health.RegisterHealthEndpoints(mux)

	return s.metricsMiddleware(mux)
}

func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics := s.sc.Metrics()
		if metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := instrumentation.RoutePath(r.URL.Path, RouteMCP, RouteHealthz, RouteReadyz, RouteHealthDetailed)
		metrics.RecordHTTPRequest(r.Context(), r.Method, route, sw.status, time.Since(start))
	})
}

// Start listens on addr and serves until Shutdown.
func (s *HTTPServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *HTTPServer) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	slog.Info("starting streamable HTTP server", "addr", ln.Addr().String(), "endpoint", RouteMCP)
	return srv.Serve(ln)
}

// Shutdown marks the server unready and stops accepting requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// SessionHooks returns MCP hooks that track active sessions in metrics.
func SessionHooks(sc *ServerContext, transport string) *mcpserver.Hooks {
	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		sc.Metrics().IncrementActiveSessions(ctx, transport)
		slog.Debug("mcp session registered", "session_id", session.SessionID(), "transport", transport)
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
		sc.Metrics().DecrementActiveSessions(ctx, transport)
		slog.Debug("mcp session closed", "session_id", session.SessionID(), "transport", transport)
	})
	return hooks
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
