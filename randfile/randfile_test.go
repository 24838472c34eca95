package randfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := Create(path)
	require.NoError(t, err)
	require.True(t, f.Writable())
	require.Equal(t, path, f.Name())

	require.NoError(t, f.WriteAt(0, []byte("hello")))
	sz, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 5, sz)
	require.NoError(t, f.Close())

	reopened, err := Open(path, false)
	require.NoError(t, err)
	defer reopened.Close()
	require.False(t, reopened.Writable())

	got, err := reopened.ReadAt(0, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"), false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateFailsIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Create(path)
	require.Error(t, err)
}

func TestWriteAtExtendsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.WriteAt(0, []byte("abc")))
	require.NoError(t, f.WriteAt(3, []byte("def")))
	sz, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 6, sz)

	got, err := f.ReadAt(0, 6)
	require.NoError(t, err)
	require.Equal(t, []byte("abcdef"), got)
}

func TestTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.WriteAt(0, []byte("abcdef")))
	require.NoError(t, f.Truncate(3))
	sz, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 3, sz)
}

func TestReadOnlyRejectsMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.WriteAt(0, []byte("abc")))
	require.NoError(t, f.Close())

	ro, err := Open(path, false)
	require.NoError(t, err)
	defer ro.Close()

	require.Error(t, ro.WriteAt(0, []byte("x")))
	require.Error(t, ro.Truncate(0))
}
