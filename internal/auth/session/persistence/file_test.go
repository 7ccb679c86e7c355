package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(filepath.Join(dir, "state"))
	require.NoError(t, err)

	t.Run("missing key is not an error", func(t *testing.T) {
		v, ok, err := f.Load(ctx, "web3-auth-storage")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("save then load round trips and leaves no temp files", func(t *testing.T) {
		require.NoError(t, f.Save(ctx, "web3-auth-storage", `{"account":"0xab","isConnected":true}`))
		require.NoError(t, f.Save(ctx, "web3-auth-storage", `{"account":"0xcd","isConnected":true}`))

		v, ok, err := f.Load(ctx, "web3-auth-storage")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"account":"0xcd","isConnected":true}`, v)

		entries, err := os.ReadDir(filepath.Join(dir, "state"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("a reopened store sees the saved value", func(t *testing.T) {
		reopened, err := NewFile(filepath.Join(dir, "state"))
		require.NoError(t, err)
		_, ok, err := reopened.Load(ctx, "web3-auth-storage")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		require.NoError(t, f.Clear(ctx, "web3-auth-storage"))
		require.NoError(t, f.Clear(ctx, "web3-auth-storage"))
		_, ok, err := f.Load(ctx, "web3-auth-storage")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keys cannot escape the directory", func(t *testing.T) {
		assert.Error(t, f.Save(ctx, "../escape", "x"))
		_, _, err := f.Load(ctx, "")
		assert.Error(t, err)
	})
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()

	require.NoError(t, m.Save(ctx, "k", "v"))
	v, ok, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, m.Clear(ctx, "k"))
	_, ok, _ = m.Load(ctx, "k")
	assert.False(t, ok)
}
