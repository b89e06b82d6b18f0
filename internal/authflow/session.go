package authflow

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the in-memory state of one authorization attempt.
type Session struct {
	state       string
	redirectURI string
	createdAt   time.Time

	mu      sync.Mutex
	handled bool
}

// NewSession creates a session with a fresh state nonce of the form
// <mode>_<unix-millis>_<uuid>.
func NewSession(mode Mode, redirectURI string, now time.Time) *Session {
	return &Session{
		state:       fmt.Sprintf("%s_%d_%s", mode, now.UnixMilli(), uuid.NewString()),
		redirectURI: redirectURI,
		createdAt:   now,
	}
}

// State returns the state nonce sent with the authorization request.
func (s *Session) State() string {
	return s.state
}

// RedirectURI returns the redirect URI used for both requests.
func (s *Session) RedirectURI() string {
	return s.redirectURI
}

// CreatedAt returns when the session started.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// StateMatches compares got with the session state in constant time.
func (s *Session) StateMatches(got string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.state)) == 1
}

// Handled reports whether a callback already produced a stored token.
func (s *Session) Handled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled
}

// MarkHandled records a successful callback. It returns false if the session
// was already handled.
func (s *Session) MarkHandled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled {
		return false
	}
	s.handled = true
	return true
}
