package credentials

import (
	"errors"
	"sort"
	"sync"
)

// Keys read and written by the credential flow and the MCP server.
const (
	KeyClientID     = "DIDA_CLIENT_ID"
	KeyClientSecret = "DIDA_CLIENT_SECRET"
	KeyRedirectURI  = "DIDA_REDIRECT_URI"
	KeyToken        = "DIDA365_TOKEN"
)

// DefaultPath is the credential file used when none is configured.
const DefaultPath = ".env"

// ErrEmptyKey is returned when a store operation is attempted with an empty key.
var ErrEmptyKey = errors.New("credentials: key must not be empty")

// Store is a key/value credential store.
type Store interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) (string, bool, error)

	// Set creates or overwrites the value stored under key.
	Set(key, value string) error
}

// Lookup returns the value for key, treating a missing key as an empty string.
func Lookup(s Store, key string) (string, error) {
	v, _, err := s.Get(key)
	return v, err
}

// MemoryStore is an in-memory Store, used in tests and for ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	writes int
}

// NewMemoryStore creates a MemoryStore seeded with initial values.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MemoryStore{values: values}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.writes++
	return nil
}

// Snapshot returns a copy of all stored values.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes returns how many Set calls succeeded.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
