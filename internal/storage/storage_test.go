package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellnest/core/internal/config"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v"))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "missing"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		kv, closer, err := Open(ctx, &config.AppConfig{Storage: config.StorageConfig{Driver: "memory"}})
		require.NoError(t, err)
		assert.IsType(t, &Memory{}, kv)
		assert.NoError(t, closer.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kv.db")
		kv, closer, err := Open(ctx, &config.AppConfig{Storage: config.StorageConfig{Driver: "SQLite", Path: path}})
		require.NoError(t, err)
		defer closer.Close()

		require.NoError(t, kv.Set(ctx, "access_token", "abc"))
		v, ok, err := kv.Get(ctx, "access_token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := Open(ctx, &config.AppConfig{Storage: config.StorageConfig{Driver: "etcd"}})
		assert.ErrorIs(t, err, ErrUnknownDriver)
	})

	t.Run("s3 without endpoint", func(t *testing.T) {
		_, _, err := Open(ctx, &config.AppConfig{Storage: config.StorageConfig{Driver: "s3"}})
		assert.Error(t, err)
	})
}

func TestObjectKey(t *testing.T) {
	s := &ObjectStore{prefix: "wellnest:"}
	assert.Equal(t, "wellnest/access_token", s.objectKey("access_token"))

	s.prefix = ""
	assert.Equal(t, "access_token", s.objectKey("access_token"))
}
