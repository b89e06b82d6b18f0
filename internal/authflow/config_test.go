package authflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/dida365-mcp/internal/credentials"
)

func TestLoadConfig_Defaults(t *testing.T) {
	store := credentials.NewMemoryStore(map[string]string{
		credentials.KeyClientID:     " id ",
		credentials.KeyClientSecret: "secret",
	})

	cfg, err := LoadConfig(store)
	require.NoError(t, err)

	assert.Equal(t, "id", cfg.ClientID)
	assert.Equal(t, "secret", cfg.ClientSecret)
	assert.Equal(t, DefaultRedirectURI, cfg.RedirectURI)
	assert.Equal(t, DefaultAuthURL, cfg.AuthURL)
	assert.Equal(t, DefaultTokenURL, cfg.TokenURL)
	assert.Equal(t, DefaultScope, cfg.Scope)
	assert.Equal(t, DefaultExchangeTimeout, cfg.ExchangeTimeout)
	assert.Equal(t, DefaultShutdownDelay, cfg.ShutdownDelay)
	assert.Equal(t, "/callback", cfg.CallbackPath())
	assert.Equal(t, "localhost:38000", cfg.ListenAddr())
}

type brokenStore struct{ credentials.Store }

func (brokenStore) Get(string) (string, bool, error) {
	return "", false, errors.New("permission denied")
}

func TestLoadConfig_StoreError(t *testing.T) {
	_, err := LoadConfig(brokenStore{})
	require.Error(t, err)
	assert.False(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestConfig_Validate(t *testing.T) {
	base := Config{ClientID: "id", ClientSecret: "secret"}

	tests := []struct {
		name     string
		redirect string
		wantErr  string
	}{
		{name: "default", redirect: DefaultRedirectURI},
		{name: "ipv4 loopback", redirect: "http://127.0.0.1:9000/cb"},
		{name: "ipv6 loopback", redirect: "http://[::1]:9000/cb"},
		{name: "https remote", redirect: "https://auth.example.com/callback"},
		{name: "http remote", redirect: "http://auth.example.com/callback", wantErr: "only allowed for localhost"},
		{name: "bad scheme", redirect: "ftp://localhost/cb", wantErr: "scheme must be"},
		{name: "no host", redirect: "http:///callback", wantErr: "has no host"},
		{name: "query", redirect: "http://localhost:38000/callback?x=1", wantErr: "query or fragment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.RedirectURI = tt.redirect
			err := cfg.WithDefaults().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ListenAddr(t *testing.T) {
	tests := map[string]string{
		"http://localhost:38000/callback":   "localhost:38000",
		"http://127.0.0.1/callback":         "127.0.0.1:80",
		"https://auth.example.com/callback": ":443",
		"https://auth.example.com:8443/cb":  ":8443",
	}
	for redirect, want := range tests {
		assert.Equal(t, want, Config{RedirectURI: redirect}.ListenAddr(), redirect)
	}
}

func TestConfig_CallbackPath(t *testing.T) {
	assert.Equal(t, "/", Config{RedirectURI: "http://localhost:38000"}.CallbackPath())
	assert.Equal(t, "/oauth/cb", Config{RedirectURI: "http://localhost:38000/oauth/cb"}.CallbackPath())
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Missing: []string{credentials.KeyClientID, credentials.KeyClientSecret}}
	assert.Equal(t, "missing required configuration: DIDA_CLIENT_ID, DIDA_CLIENT_SECRET", err.Error())

	inner := errors.New("bad")
	err = &ConfigError{Err: inner}
	assert.ErrorIs(t, err, inner)
}
