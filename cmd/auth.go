package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/dida365-mcp/internal/authflow"
	"github.com/teemow/dida365-mcp/internal/credentials"
	"github.com/teemow/dida365-mcp/internal/instrumentation"
	"github.com/teemow/dida365-mcp/internal/logging"
)

// authOptions holds the flags shared by auth and refresh.
type authOptions struct {
	openBrowser bool
	redirectURI string
}

func newAuthCmd() *cobra.Command {
	var opts authOptions

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize with Dida365 and store DIDA365_TOKEN",
		Long: `Run the one-shot OAuth authorization code flow.

Reads DIDA_CLIENT_ID, DIDA_CLIENT_SECRET and DIDA_REDIRECT_URI from the
credential file, prints the authorization URL and waits for the provider to
redirect back to the local callback listener. The access token is written to
the credential file as DIDA365_TOKEN=Bearer <token> and the listener shuts
down shortly after.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthFlow(cmd.Context(), cmd.OutOrStdout(), authflow.ModeBootstrap, opts)
		},
	}
	addAuthFlags(cmd, &opts)
	return cmd
}

func newRefreshCmd() *cobra.Command {
	var opts authOptions

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Replace the stored DIDA365_TOKEN",
		Long: `Run the authorization flow again to replace an expired access token.

Behaves like "auth" but reports the token currently stored before listening.
Restart the MCP server afterwards so it picks up the new token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthFlow(cmd.Context(), cmd.OutOrStdout(), authflow.ModeRefresh, opts)
		},
	}
	addAuthFlags(cmd, &opts)
	return cmd
}

func addAuthFlags(cmd *cobra.Command, opts *authOptions) {
	cmd.Flags().BoolVar(&opts.openBrowser, "open", false, "Open the authorization URL in the default browser")
	cmd.Flags().StringVar(&opts.redirectURI, "redirect-uri", "", "Override DIDA_REDIRECT_URI (must match the registered application)")
}

// authFlowConfig loads the client credentials from store and applies the
// provider endpoint overrides from the environment.
func authFlowConfig(store credentials.Store, opts authOptions) (authflow.Config, error) {
	cfg, err := authflow.LoadConfig(store)
	if err != nil {
		return authflow.Config{}, err
	}
	if opts.redirectURI != "" {
		cfg.RedirectURI = opts.redirectURI
	}
	cfg.AuthURL = firstNonEmpty(os.Getenv(envAuthURL), cfg.AuthURL)
	cfg.TokenURL = firstNonEmpty(os.Getenv(envTokenURL), cfg.TokenURL)
	cfg.UserAgent = "dida365-mcp/" + version
	return cfg, nil
}

func runAuthFlow(ctx context.Context, out io.Writer, mode authflow.Mode, opts authOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := serverLogger(os.Stderr, globals.debug)

	envFile := envFilePath()
	if err := credentials.LoadEnvironment(envFile); err != nil {
		return fmt.Errorf("failed to load credential file: %w", err)
	}
	store := credentials.NewFileStore(envFile)

	cfg, err := authFlowConfig(store, opts)
	if err != nil {
		return err
	}

	metrics, shutdown := authMetrics(ctx, logger)
	defer shutdown()

	flow, err := authflow.New(cfg, authflow.Options{
		Mode:        mode,
		Store:       store,
		Logger:      logging.NewSlogAdapter(logger.With(logging.Mode(mode.String()))),
		Metrics:     metrics,
		Out:         out,
		OpenBrowser: opts.openBrowser,
	})
	if err != nil {
		return err
	}

	logger.Debug("Starting authorization flow",
		"credential_file", store.Path(),
		"redirect_uri", cfg.RedirectURI,
		"client_secret", logging.SanitizeSecret(cfg.ClientSecret))

	return flow.Run(ctx)
}

// authMetrics creates an instrumentation provider for the flow when one is
// configured through the environment. The returned func flushes it.
func authMetrics(ctx context.Context, logger *slog.Logger) (*instrumentation.Metrics, func()) {
	cfg := instrumentation.DefaultConfig()
	cfg.ServiceVersion = version
	if !cfg.Enabled || cfg.MetricsExporter == instrumentation.ExporterPrometheus {
		// Nothing would scrape a short-lived process.
		return nil, func() {}
	}

	provider, err := instrumentation.NewProvider(ctx, cfg)
	if err != nil {
		logger.Warn("instrumentation disabled", logging.Err(err))
		return nil, func() {}
	}
	return provider.Metrics(), func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}
}
