package authflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// maxTokenResponseSize matches the limit oauth2 applies when reading a token
// response.
const maxTokenResponseSize = 1 << 20

// Token is a successful token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresIn    int64
	Expiry       time.Time
}

// BearerValue is the value stored under DIDA365_TOKEN.
func (t *Token) BearerValue() string {
	return "Bearer " + t.AccessToken
}

// Exchanger trades an authorization code for a token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*Token, error)
}

// ExchangeError is a failed token exchange. StatusCode is zero when no
// response was received.
type ExchangeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the exchange ran out of time.
func (e *ExchangeError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// OAuth2Exchanger exchanges codes at the provider token endpoint using
// golang.org/x/oauth2. The client credentials are sent as a Basic
// Authorization header over the raw client ID and secret.
type OAuth2Exchanger struct {
	config    *oauth2.Config
	scope     string
	timeout   time.Duration
	userAgent string
	transport http.RoundTripper
}

// NewOAuth2Exchanger creates an exchanger for cfg. A nil transport selects
// http.DefaultTransport.
func NewOAuth2Exchanger(cfg Config, transport http.RoundTripper) *OAuth2Exchanger {
	cfg = cfg.WithDefaults()
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &OAuth2Exchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: strings.Fields(cfg.Scope),
		},
		scope:     cfg.Scope,
		timeout:   cfg.ExchangeTimeout,
		userAgent: cfg.UserAgent,
		transport: transport,
	}
}

// Exchange implements Exchanger. Only a 200 response carrying a non-empty
// access_token counts as success; everything else is an *ExchangeError with
// the provider's status and body. A 200 body is read as JSON whatever its
// Content-Type.
func (e *OAuth2Exchanger) Exchange(ctx context.Context, code string) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	capture := &capturingTransport{
		base:         e.transport,
		userAgent:    e.userAgent,
		clientID:     e.config.ClientID,
		clientSecret: e.config.ClientSecret,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: capture,
		Timeout:   e.timeout,
	})

	tok, err := e.config.Exchange(ctx, code, oauth2.SetAuthURLParam("scope", e.scope))
	status, body := capture.result()
	if status == http.StatusOK {
		if parsed := tokenFromJSON(body, time.Now()); parsed != nil {
			return parsed, nil
		}
	}
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			status = re.Response.StatusCode
			body = re.Body
		}
		return nil, &ExchangeError{StatusCode: status, Body: string(body), Err: err}
	}
	if status != http.StatusOK {
		return nil, &ExchangeError{
			StatusCode: status,
			Body:       string(body),
			Err:        fmt.Errorf("unexpected status %d from token endpoint", status),
		}
	}

	// Form-encoded 200 responses are only understood by oauth2.
	scope, _ := tok.Extra("scope").(string)
	return &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
		ExpiresIn:    tok.ExpiresIn,
		Expiry:       tok.Expiry,
	}, nil
}

// tokenFromJSON reads a token response body. It returns nil unless body is
// JSON with a non-empty access_token.
func tokenFromJSON(body []byte, now time.Time) *Token {
	if !gjson.ValidBytes(body) {
		return nil
	}
	res := gjson.ParseBytes(body)
	access := res.Get("access_token").String()
	if access == "" {
		return nil
	}

	tok := &Token{
		AccessToken:  access,
		TokenType:    res.Get("token_type").String(),
		RefreshToken: res.Get("refresh_token").String(),
		Scope:        res.Get("scope").String(),
		ExpiresIn:    res.Get("expires_in").Int(),
	}
	if tok.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return tok
}

// capturingTransport sets the client credentials and keeps the status and
// body of the token response so failures can be reported verbatim.
type capturingTransport struct {
	base         http.RoundTripper
	userAgent    string
	clientID     string
	clientSecret string

	mu     sync.Mutex
	status int
	body   []byte
}

func (t *capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	// The provider expects base64(client_id:client_secret) over the raw values.
	req.SetBasicAuth(t.clientID, t.clientSecret)
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	t.mu.Lock()
	t.status = resp.StatusCode
	t.body = body
	t.mu.Unlock()
	return resp, nil
}

func (t *capturingTransport) result() (int, []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.body
}
