package dida

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/dida365-mcp/internal/instrumentation"
)

const (
	// DefaultBaseURL is the Dida365 API used by the task and project tools.
	DefaultBaseURL = "https://api.dida365.com/api/v2"
	// DefaultOpenAPIBaseURL is the open API used to verify a token.
	DefaultOpenAPIBaseURL = "https://api.dida365.com/open/v1"
	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 30 * time.Second

	maxResponseBody = 10 << 20
)

// Client wraps the Dida365 HTTP API
type Client struct {
	baseURL     string
	openBaseURL string
	token       string
	userAgent   string
	httpClient  *http.Client
	metrics     *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the task and project API base URL.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithOpenAPIBaseURL overrides the open API base URL.
func WithOpenAPIBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.openBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMetrics records API operation metrics on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client that authenticates with token. The token is sent
// as the Authorization header exactly as given, normally "Bearer <access_token>".
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		openBaseURL: DefaultOpenAPIBaseURL,
		token:       strings.TrimSpace(token),
		userAgent:   "dida365-mcp",
		httpClient:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasToken reports whether an access token is configured.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// BaseURL returns the API base URL in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTasks returns all tasks visible to the token.
func (c *Client) ListTasks(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationListTasks, http.MethodGet, c.baseURL, "/tasks", nil)
}

// CreateTask creates a task. Priority defaults to 0 when not set.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (json.RawMessage, error) {
	if in.Priority == nil {
		in.Priority = Priority(0)
	}
	return c.do(ctx, instrumentation.OperationCreateTask, http.MethodPost, c.baseURL, "/tasks", in)
}

// UpdateTask updates the task with the given ID. Only set fields are sent.
func (c *Client) UpdateTask(ctx context.Context, taskID string, in TaskInput) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationUpdateTask, http.MethodPut, c.baseURL, "/tasks/"+url.PathEscape(taskID), in)
}

// DeleteTask deletes the task with the given ID.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, instrumentation.OperationDeleteTask, http.MethodDelete, c.baseURL, "/tasks/"+url.PathEscape(taskID), nil)
	return err
}

// ListProjects returns all projects visible to the token.
func (c *Client) ListProjects(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationListProjects, http.MethodGet, c.baseURL, "/projects", nil)
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationCreateProject, http.MethodPost, c.baseURL, "/projects", in)
}

// UpdateProject updates the project with the given ID.
func (c *Client) UpdateProject(ctx context.Context, projectID string, in ProjectInput) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationUpdateProject, http.MethodPut, c.baseURL, "/projects/"+url.PathEscape(projectID), in)
}

// DeleteProject deletes the project with the given ID.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	_, err := c.do(ctx, instrumentation.OperationDeleteProject, http.MethodDelete, c.baseURL, "/projects/"+url.PathEscape(projectID), nil)
	return err
}

// ListOpenProjects lists projects through the open API. It is used to check
// that a stored token is still accepted.
func (c *Client) ListOpenProjects(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, instrumentation.OperationOpenProjects, http.MethodGet, c.openBaseURL, "/project", nil)
}

func (c *Client) do(ctx context.Context, operation, method, base, path string, body any) (json.RawMessage, error) {
	if !c.HasToken() {
		return nil, ErrNoToken
	}

	ctx, span := instrumentation.StartAPISpan(ctx, operation,
		attribute.String("http.request.method", method),
		attribute.String("http.route", instrumentation.NormalizeAPIPath(path)),
	)
	defer span.End()

	start := time.Now()
	raw, status, err := c.send(ctx, method, base+path, body)
	duration := time.Since(start)

	instrumentation.SetSpanStatusCode(span, status)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		c.metrics.RecordAPIOperation(ctx, operation, instrumentation.StatusError, status, duration)
		return nil, err
	}

	instrumentation.SetSpanSuccess(span)
	c.metrics.RecordAPIOperation(ctx, operation, instrumentation.StatusSuccess, status, duration)
	return raw, nil
}

func (c *Client) send(ctx context.Context, method, target string, body any) (json.RawMessage, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, newTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, newTransportError(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, newAPIError(resp.StatusCode, data)
	}
	return normalizeBody(data), resp.StatusCode, nil
}

// normalizeBody compacts a JSON body. Empty bodies become nil and non-JSON
// bodies are returned as a JSON string.
func normalizeBody(data []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		return buf.Bytes()
	}

	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
