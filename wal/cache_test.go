package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadCacheServesWithoutLogAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Create(Options{Path: path, CacheSize: 1 << 20})
	require.NoError(t, err)
	defer w.Close()

	payload := []byte("cached payload")
	lsn, err := w.Write(payload)
	require.NoError(t, err)

	// wait for ristretto's async buffering to settle before asserting a hit
	w.cache.c.Wait()

	got, err := w.Read(lsn)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	_, hit := w.cache.get(lsn)
	require.True(t, hit)
}

func TestTruncateInvalidatesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Create(Options{Path: path, CacheSize: 1 << 20})
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte{byte(i)})
		require.NoError(t, err)
	}
	w.cache.c.Wait()

	_, err = w.Truncate(1)
	require.NoError(t, err)

	_, hit := w.cache.get(1)
	require.False(t, hit)
	_, hit = w.cache.get(2)
	require.False(t, hit)
}

func TestCacheDisabledByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Create(Options{Path: path})
	require.NoError(t, err)
	defer w.Close()
	require.Nil(t, w.cache)
}
