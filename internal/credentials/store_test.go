package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	seed := map[string]string{KeyClientID: "abc"}
	store := NewMemoryStore(seed)
	seed[KeyClientID] = "mutated"

	v, ok, err := store.Get(KeyClientID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, store.Set(KeyToken, "Bearer x"))
	require.NoError(t, store.Set(KeyToken, "Bearer y"))

	assert.Equal(t, map[string]string{KeyClientID: "abc", KeyToken: "Bearer y"}, store.Snapshot())
	assert.Equal(t, []string{KeyToken, KeyClientID}, store.Keys())
	assert.Equal(t, 2, store.Writes())

	assert.ErrorIs(t, store.Set("", "x"), ErrEmptyKey)
}

func TestLookup(t *testing.T) {
	store := NewMemoryStore(nil)
	v, err := Lookup(store, KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}
