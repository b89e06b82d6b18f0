package authflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/skratchdot/open-golang/open"

	"github.com/teemow/dida365-mcp/internal/credentials"
	"github.com/teemow/dida365-mcp/internal/instrumentation"
	"github.com/teemow/dida365-mcp/internal/logging"
)

// ErrPortInUse is returned by Run when the redirect URI's port is taken,
// typically by another running flow.
var ErrPortInUse = errors.New("callback port already in use")

// serverShutdownTimeout bounds the graceful listener shutdown.
const serverShutdownTimeout = 5 * time.Second

// Options configures a Flow. Only Store is required.
type Options struct {
	Mode  Mode
	Store credentials.Store

	// Exchanger defaults to an OAuth2Exchanger for the flow's Config.
	Exchanger Exchanger
	// Scheduler defaults to TimerScheduler.
	Scheduler Scheduler
	Logger    logging.Logger
	Metrics   *instrumentation.Metrics

	// Out receives the operator instructions. Defaults to os.Stdout.
	Out io.Writer
	// OpenBrowser opens the authorization URL with Browser.
	OpenBrowser bool
	// Browser defaults to open.Run.
	Browser func(url string) error

	Now func() time.Time
}

// Flow is one run of the authorization-code flow.
type Flow struct {
	cfg         Config
	mode        Mode
	store       credentials.Store
	exchanger   Exchanger
	scheduler   Scheduler
	logger      logging.Logger
	metrics     *instrumentation.Metrics
	out         io.Writer
	openBrowser bool
	browser     func(string) error
	session     *Session

	// mu serializes callback handling
	mu sync.Mutex

	taskMu       sync.Mutex
	shutdownTask Task

	done     chan struct{}
	doneOnce sync.Once
}

// New validates cfg and prepares a flow. An invalid configuration yields a
// *ConfigError and nothing is bound.
func New(cfg Config, opts Options) (*Flow, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, errors.New("authflow: a credential store is required")
	}

	if opts.Exchanger == nil {
		opts.Exchanger = NewOAuth2Exchanger(cfg, nil)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Browser == nil {
		opts.Browser = open.Run
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Flow{
		cfg:         cfg,
		mode:        opts.Mode,
		store:       opts.Store,
		exchanger:   opts.Exchanger,
		scheduler:   opts.Scheduler,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		out:         opts.Out,
		openBrowser: opts.OpenBrowser,
		browser:     opts.Browser,
		session:     NewSession(opts.Mode, cfg.RedirectURI, opts.Now()),
		done:        make(chan struct{}),
	}, nil
}

// Session returns the flow's authorization session.
func (f *Flow) Session() *Session {
	return f.session
}

// Config returns the effective configuration.
func (f *Flow) Config() Config {
	return f.cfg
}

// Done is closed once the shutdown task has fired.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

func (f *Flow) finish() {
	f.doneOnce.Do(func() { close(f.done) })
}

// AuthorizationURL returns the provider URL the operator opens in a browser.
// Scope and state are path-escaped so the scope separator is sent as %20.
func (f *Flow) AuthorizationURL() string {
	return fmt.Sprintf("%s?client_id=%s&redirect_uri=%s&response_type=code&scope=%s&state=%s",
		f.cfg.AuthURL,
		url.QueryEscape(f.cfg.ClientID),
		url.QueryEscape(f.cfg.RedirectURI),
		url.PathEscape(f.cfg.Scope),
		url.PathEscape(f.session.State()),
	)
}

// Run binds the callback listener and serves until a token has been stored
// and the shutdown delay elapsed, or ctx is cancelled. A bound port yields an
// error wrapping ErrPortInUse; no other port is tried.
func (f *Flow) Run(ctx context.Context) error {
	if f.mode == ModeRefresh {
		if err := f.reportCurrentToken(); err != nil {
			return err
		}
	}

	addr := f.cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("%w: %s (is another authorization running?)", ErrPortInUse, addr)
		}
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return f.Serve(ctx, ln)
}

// Serve is Run on an existing listener. The listener is closed on return.
func (f *Flow) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           f,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		// must outlast the token exchange performed inside the handler
		WriteTimeout: f.cfg.ExchangeTimeout + 10*time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	f.logger.Info("Waiting for authorization callback",
		logging.KeyMode, f.mode.String(),
		logging.KeyPath, f.cfg.CallbackPath(),
		"addr", ln.Addr().String())
	f.printInstructions()

	var runErr error
	select {
	case <-f.done:
		f.logger.Info("Authorization complete, callback listener stopped", logging.KeyMode, f.mode.String())
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = fmt.Errorf("callback listener failed: %w", err)
	}

	f.taskMu.Lock()
	if f.shutdownTask != nil {
		f.shutdownTask.Cancel()
	}
	f.taskMu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop callback listener: %w", err)
	}
	return runErr
}

func (f *Flow) printInstructions() {
	authURL := f.AuthorizationURL()
	fmt.Fprintf(f.out, "Open the following URL in your browser to authorize dida365-mcp:\n\n  %s\n\n", authURL)
	fmt.Fprintf(f.out, "Waiting for the callback on %s ...\n", f.cfg.RedirectURI)

	if !f.openBrowser {
		return
	}
	if err := f.browser(authURL); err != nil {
		f.logger.Warn("Could not open browser automatically", logging.KeyError, err)
		fmt.Fprintln(f.out, "Could not open a browser, please open the URL manually.")
	}
}

func (f *Flow) reportCurrentToken() error {
	current, ok, err := f.store.Get(credentials.KeyToken)
	if err != nil {
		return fmt.Errorf("failed to read current token: %w", err)
	}
	if !ok || current == "" {
		fmt.Fprintln(f.out, "No existing DIDA365_TOKEN found, a new one will be stored.")
		return nil
	}
	fmt.Fprintf(f.out, "Current DIDA365_TOKEN %s will be replaced.\n", logging.SanitizeToken(current))
	return nil
}
