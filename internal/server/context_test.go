package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/dida365-mcp/internal/dida"
	"github.com/teemow/dida365-mcp/internal/instrumentation"
)

func TestNewServerContext_RequiresClient(t *testing.T) {
	_, err := NewServerContext(context.Background(), nil)
	assert.Error(t, err)
}

func TestServerContext_Accessors(t *testing.T) {
	sc := newTestServerContext(t, "Bearer a")

	assert.True(t, sc.Client().HasToken())
	assert.Nil(t, sc.Metrics())
	assert.Nil(t, sc.AuditLogger())
	assert.False(t, sc.ReadOnly())

	m, _ := newTestMetrics(t)
	sc.SetMetrics(m)
	assert.Same(t, m, sc.Metrics())

	al := instrumentation.NewAuditLogger(nil)
	sc.SetAuditLogger(al)
	assert.Same(t, al, sc.AuditLogger())

	sc.SetReadOnly(true)
	assert.True(t, sc.ReadOnly())

	replacement := dida.NewClient("")
	sc.SetClient(replacement)
	assert.Same(t, replacement, sc.Client())

	sc.SetClient(nil)
	assert.Same(t, replacement, sc.Client())
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := newTestServerContext(t, "Bearer a")
	require.False(t, sc.IsShutdown())

	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)

	assert.NoError(t, sc.Shutdown())
}
