// ABOUTME: Contract tests run against both KV implementations
// ABOUTME: Verifies get/set/delete semantics, persistence across reopen and file permissions

package localstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func runKVContract(t *testing.T, kv KV) {
	ctx := context.Background()

	_, err := kv.Get(ctx, "admin_token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "admin_token", "first"))
	require.NoError(t, kv.Set(ctx, "admin_token", "second"))
	require.NoError(t, kv.Set(ctx, "token", "portal"))

	v, err := kv.Get(ctx, "admin_token")
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	require.NoError(t, kv.Delete(ctx, "admin_token"))
	require.NoError(t, kv.Delete(ctx, "admin_token"), "deleting a missing key is fine")

	_, err = kv.Get(ctx, "admin_token")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = kv.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "portal", v, "keys are independent")
}

func TestMemoryStore_Contract(t *testing.T) {
	runKVContract(t, NewMemoryStore())
}

func TestSQLiteStore_Contract(t *testing.T) {
	s, _ := createTestStore(t)
	runKVContract(t, s)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := createTestStore(t)
	require.NoError(t, s.Set(ctx, "admin_token", "persisted"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "admin_token")
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}

func TestSQLiteStore_FilePermissions(t *testing.T) {
	_, path := createTestStore(t)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
