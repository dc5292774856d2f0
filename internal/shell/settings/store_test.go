package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// Store Tests
// =============================================================================

func TestStore_GetUnset(t *testing.T) {
	store := newStore(t)
	value, err := store.Get(KeyPrimaryHostname)
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestStore_SetThenGet(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(KeyPrimaryHostname, "stacks.example.com"))

	value, err := store.Get(KeyPrimaryHostname)
	require.NoError(t, err)
	assert.Equal(t, "stacks.example.com", value)
}

func TestStore_SetOverwrites(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set(KeyCheckUpdate, "true"))
	require.NoError(t, store.Set(KeyCheckUpdate, "false"))

	value, err := store.Get(KeyCheckUpdate)
	require.NoError(t, err)
	assert.Equal(t, "false", value)
}

func TestStore_PrimaryHostname(t *testing.T) {
	store := newStore(t)
	assert.Equal(t, "", store.PrimaryHostname())

	require.NoError(t, store.Set(KeyPrimaryHostname, "mac-mini.local"))
	assert.Equal(t, "mac-mini.local", store.PrimaryHostname())
}
