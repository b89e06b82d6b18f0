package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/dida365-mcp/internal/credentials"
	"github.com/teemow/dida365-mcp/internal/dida"
	"github.com/teemow/dida365-mcp/internal/instrumentation"
	"github.com/teemow/dida365-mcp/internal/logging"
	"github.com/teemow/dida365-mcp/internal/server"
	"github.com/teemow/dida365-mcp/internal/tools/dida_tools"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = server.TransportStreamableHTTP

	// mcpServerName is the name announced to MCP clients.
	mcpServerName = "dida365-mcp-servers"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveOptions holds the serve command flags.
type serveOptions struct {
	transport        string
	httpAddr         string
	readOnly         bool
	disableStreaming bool
	apiBase          string
	metrics          MetricsConfig
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the Dida365 task
and project tools to AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp, with /healthz and /readyz

The access token is read from DIDA365_TOKEN, either from the environment or
from the credential file. Run "dida365-mcp auth" first if it is missing; the
server still starts and every tool explains how to authorize.

Safety Mode:
  Use --read-only to register only getTasks and getProjects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&opts.readOnly, "read-only", false, "Only register tools that do not modify tasks or projects")
	cmd.Flags().BoolVar(&opts.disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().StringVar(&opts.apiBase, "api-base", "", "Dida365 API base URL (default: "+dida.DefaultBaseURL+"). Can also use DIDA_API_BASE env var.")
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port (non-stdio transports). Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// serverLogger returns the process logger. With stdio the protocol owns
// stdout, so logs always go to stderr.
func serverLogger(w io.Writer, debug bool) *slog.Logger {
	return logging.NewTextLogger(w, debug)
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := serverLogger(os.Stderr, globals.debug)
	slog.SetDefault(logger)

	if opts.transport != transportStdio && opts.transport != transportStreamableHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}

	envFile := envFilePath()
	if err := credentials.LoadEnvironment(envFile); err != nil {
		return fmt.Errorf("failed to load credential file: %w", err)
	}

	// Load metrics config from environment if not set via flags
	if os.Getenv("METRICS_ENABLED") == "false" {
		opts.metrics.Enabled = false
	}
	if opts.metrics.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			opts.metrics.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	token := os.Getenv(credentials.KeyToken)
	if token == "" {
		logger.Warn("DIDA365_TOKEN is not set; tools will ask for authorization",
			"env_file", firstNonEmpty(envFile, credentials.DefaultPath))
	} else {
		logger.Debug("Using stored access token", "token", logging.SanitizeToken(token))
	}

	client := dida.NewClient(token,
		dida.WithBaseURL(firstNonEmpty(opts.apiBase, os.Getenv(envAPIBase))),
		dida.WithOpenAPIBaseURL(os.Getenv(envOpenAPIBase)),
		dida.WithUserAgent("dida365-mcp/"+version),
		dida.WithMetrics(provider.Metrics()),
	)

	serverContext, err := server.NewServerContext(shutdownCtx, client)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()
	serverContext.SetReadOnly(opts.readOnly)

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}

	transportLabel := opts.transport
	mcpSrv := mcpserver.NewMCPServer(mcpServerName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithHooks(server.SessionHooks(serverContext, transportLabel)),
		mcpserver.WithInstructions("Tools for managing Dida365 (TickTick China) projects and tasks."),
	)

	if err := dida_tools.RegisterDidaTools(mcpSrv, serverContext, opts.readOnly); err != nil {
		return fmt.Errorf("failed to register Dida365 tools: %w", err)
	}

	switch opts.transport {
	case transportStdio:
		logger.Info("Dida365 MCP Server running on stdio", "read_only", opts.readOnly)
		return runStdioServer(mcpSrv)
	default:
		metricsServer, err := startMetricsServer(opts.metrics, provider, logger)
		if err != nil {
			return err
		}
		if metricsServer != nil {
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer stopCancel()
				if err := metricsServer.Shutdown(stopCtx); err != nil {
					logger.Warn("metrics server shutdown failed", logging.Err(err))
				}
			}()
		}
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, opts, logger)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// startMetricsServer starts the Prometheus endpoint when the provider exports
// through Prometheus. It returns nil when there is nothing to serve.
func startMetricsServer(cfg MetricsConfig, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	if !cfg.Enabled || !provider.ServesPrometheus() {
		return nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Addr,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", logging.Err(err))
		}
	}()
	logger.Info("Metrics server started", "addr", metricsServer.Addr())
	return metricsServer, nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, opts serveOptions, logger *slog.Logger) error {
	httpServer := server.NewHTTPServer(mcpSrv, sc, server.HTTPServerConfig{
		DisableStreaming: opts.disableStreaming,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(opts.httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("Streamable HTTP server starting", "addr", opts.httpAddr, "endpoint", server.RouteMCP, "read_only", opts.readOnly)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server")
		stopCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(stopCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
