package authflow

import (
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teemow/dida365-mcp/internal/credentials"
	"github.com/teemow/dida365-mcp/internal/logging"
)

const (
	testClientID     = "client-id"
	testClientSecret = "client-secret"
)

// fakeScheduler records scheduled tasks and runs them on Fire.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	delay time.Duration
	fn    func()

	mu        sync.Mutex
	cancelled bool
	fired     bool
}

func (t *fakeTask) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.fired {
		return false
	}
	t.cancelled = true
	return true
}

// claim marks the task as fired unless it was cancelled.
func (t *fakeTask) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.fired {
		return false
	}
	t.fired = true
	return true
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTask{delay: d, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *fakeScheduler) scheduled() []*fakeTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTask(nil), s.tasks...)
}

// Fire runs every pending task.
func (s *fakeScheduler) Fire() {
	for _, t := range s.scheduled() {
		if t.claim() {
			t.fn()
		}
	}
}

// tokenProvider is a fake token endpoint.
type tokenProvider struct {
	*httptest.Server
	calls atomic.Int32

	mu          sync.Mutex
	status      int
	body        string
	contentType string
	delay       time.Duration
	lastForm    map[string]string
	lastAuth    string
}

func newTokenProvider(t *testing.T, status int, body string) *tokenProvider {
	t.Helper()
	p := &tokenProvider{status: status, body: body, contentType: "application/json"}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		_ = r.ParseForm()
		p.mu.Lock()
		p.lastAuth = r.Header.Get("Authorization")
		p.lastForm = map[string]string{}
		for k := range r.PostForm {
			p.lastForm[k] = r.PostForm.Get(k)
		}
		p.mu.Unlock()

		status, body, delay := p.response()
		contentType := p.responseType()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *tokenProvider) response() (int, string, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.body, p.delay
}

func (p *tokenProvider) respond(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.body = body
}

func (p *tokenProvider) setContentType(ct string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contentType = ct
}

func (p *tokenProvider) responseType() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contentType
}

func (p *tokenProvider) setDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

func (p *tokenProvider) form() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastForm
}

func (p *tokenProvider) authorization() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuth
}

func basicAuth(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

func testConfig(tokenURL string) Config {
	return Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURI:  DefaultRedirectURI,
		TokenURL:     tokenURL,
	}
}

func quietLogger() logging.Logger {
	return logging.NewSlogAdapter(logging.NewTextLogger(io.Discard, false))
}

func newTestFlow(t *testing.T, cfg Config, store credentials.Store, sched Scheduler) *Flow {
	t.Helper()
	f, err := New(cfg, Options{
		Store:     store,
		Scheduler: sched,
		Logger:    quietLogger(),
		Out:       io.Discard,
		Browser:   func(string) error { return nil },
	})
	require.NoError(t, err)
	return f
}

func callback(f *Flow, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/callback?"+query, nil)
	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, req)
	return rec
}

func validQuery(f *Flow, code string) string {
	return fmt.Sprintf("code=%s&state=%s", code, f.Session().State())
}

func writeCredentialFile(t *testing.T, content string) (*credentials.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return credentials.NewFileStore(path), path
}

func fileContent(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// freePort returns a loopback port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func loopbackRedirect(port int) string {
	return "http://127.0.0.1:" + strconv.Itoa(port) + "/callback"
}

type failingStore struct {
	credentials.Store
	err error
}

func (s failingStore) Set(string, string) error {
	return s.err
}

// safeBuffer is a bytes.Buffer safe for use from the Run goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
