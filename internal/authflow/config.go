package authflow

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/teemow/dida365-mcp/internal/credentials"
)

// Provider defaults.
const (
	DefaultRedirectURI     = "http://localhost:38000/callback"
	DefaultAuthURL         = "https://dida365.com/oauth/authorize"
	DefaultTokenURL        = "https://dida365.com/oauth/token"
	DefaultScope           = "tasks:read tasks:write"
	DefaultExchangeTimeout = 10 * time.Second
	DefaultShutdownDelay   = 3 * time.Second
	DefaultUserAgent       = "dida365-mcp"
)

// Config holds the client registration and provider endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthURL  string
	TokenURL string
	Scope    string

	// ExchangeTimeout bounds the token request.
	ExchangeTimeout time.Duration
	// ShutdownDelay is how long the listener stays up after a successful
	// callback so the result page reaches the browser.
	ShutdownDelay time.Duration

	UserAgent string
}

// ConfigError reports configuration that prevents the flow from starting.
// No listener is bound when it is returned.
type ConfigError struct {
	// Missing lists the required keys that were absent or empty.
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// LoadConfig reads the client ID, secret and redirect URI from store and
// applies the defaults. Store failures are returned unchanged; missing client
// credentials yield a *ConfigError.
func LoadConfig(store credentials.Store) (Config, error) {
	var cfg Config
	for key, dst := range map[string]*string{
		credentials.KeyClientID:     &cfg.ClientID,
		credentials.KeyClientSecret: &cfg.ClientSecret,
		credentials.KeyRedirectURI:  &cfg.RedirectURI,
	} {
		v, _, err := store.Get(key)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read %s: %w", key, err)
		}
		*dst = strings.TrimSpace(v)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with empty fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = DefaultExchangeTimeout
	}
	if c.ShutdownDelay <= 0 {
		c.ShutdownDelay = DefaultShutdownDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Validate checks that the client credentials are present and that the
// redirect URI can be served locally. Plain http is only accepted for
// loopback hosts.
func (c Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, credentials.KeyClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, credentials.KeyClientSecret)
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	u, err := url.Parse(c.RedirectURI)
	if err != nil {
		return &ConfigError{Err: fmt.Errorf("invalid redirect URI %q: %w", c.RedirectURI, err)}
	}
	if u.Hostname() == "" {
		return &ConfigError{Err: fmt.Errorf("redirect URI %q has no host", c.RedirectURI)}
	}
	switch u.Scheme {
	case "http":
		if !isLoopback(u.Hostname()) {
			return &ConfigError{Err: fmt.Errorf("http redirect URIs are only allowed for localhost/127.0.0.1/[::1], use https for %s", u.Hostname())}
		}
	case "https":
	default:
		return &ConfigError{Err: fmt.Errorf("redirect URI scheme must be http (loopback only) or https, got %q", u.Scheme)}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return &ConfigError{Err: fmt.Errorf("redirect URI %q must not carry a query or fragment", c.RedirectURI)}
	}
	return nil
}

// CallbackPath is the path the provider redirects to.
func (c Config) CallbackPath() string {
	u, err := url.Parse(c.RedirectURI)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// ListenAddr is the local address for the callback listener. Loopback
// redirect hosts are bound as-is; other hosts listen on all interfaces.
func (c Config) ListenAddr() string {
	u, err := url.Parse(c.RedirectURI)
	if err != nil {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	host := u.Hostname()
	if !isLoopback(host) {
		host = ""
	}
	return net.JoinHostPort(host, port)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
