package wal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadRangeYieldsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Create(Options{Path: path})
	require.NoError(t, err)
	defer w.Close()

	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc"), []byte("dddd")}
	for _, p := range payloads {
		_, err := w.Write(p)
		require.NoError(t, err)
	}

	count := int32(2)
	cur, err := w.ReadRange(1, &count)
	require.NoError(t, err)
	require.EqualValues(t, 2, cur.Count())

	lsn, payload, ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, lsn)
	require.Equal(t, payloads[1], payload)

	lsn, payload, ok, err = cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, lsn)
	require.Equal(t, payloads[2], payload)

	_, _, ok, err = cur.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadRangeDefaultsToRemaining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Create(Options{Path: path})
	require.NoError(t, err)
	defer w.Close()

	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	for _, p := range payloads {
		_, err := w.Write(p)
		require.NoError(t, err)
	}

	cur, err := w.ReadRange(1, nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, cur.Count())

	var got [][]byte
	for {
		_, payload, ok, err := cur.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, payload)
	}
	require.Equal(t, payloads[1:], got)
}

func TestReadRangeEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Create(Options{Path: path})
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("only"))
	require.NoError(t, err)

	zero := int32(0)
	cur, err := w.ReadRange(0, &zero)
	require.NoError(t, err)
	require.EqualValues(t, 0, cur.Count())

	_, _, ok, err := cur.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadRangeCloseEarlyDoesNotHang(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Create(Options{Path: path})
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 20; i++ {
		_, err := w.Write([]byte{byte(i)})
		require.NoError(t, err)
	}

	cur, err := w.ReadRange(0, nil)
	require.NoError(t, err)
	_, _, ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)
	cur.Close()
}
