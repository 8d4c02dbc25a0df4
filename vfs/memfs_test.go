package vfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFSReadDirOrdered(t *testing.T) {
	m := NewMemFS()

	require.NoError(t, m.Mkdir("/d"))
	for _, name := range []string{"/d/c", "/d/a", "/d/b"} {
		_, err := m.Open(name, Write, Create)
		require.NoError(t, err)
	}

	entries, err := m.ReadDir("/d")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, "c", entries[2].Name)

	// Nested entries do not leak into the parent listing.
	require.NoError(t, m.Mkdir("/d/sub"))
	_, err = m.Open("/d/sub/deep", Write, Create)
	require.NoError(t, err)

	entries, err = m.ReadDir("/d")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestMemFSRenameSubtree(t *testing.T) {
	m := NewMemFS()

	require.NoError(t, m.Mkdir("/old"))
	require.NoError(t, m.Mkdir("/old/nested"))
	_, err := m.Open("/old/nested/f", Write, Create)
	require.NoError(t, err)

	require.NoError(t, m.Rename("/old", "/new"))

	_, err = m.Stat("/new/nested/f", true)
	assert.NoError(t, err)
	_, err = m.Stat("/old", true)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMemFSRemoveNonEmptyDirectory(t *testing.T) {
	m := NewMemFS()

	require.NoError(t, m.Mkdir("/d"))
	_, err := m.Open("/d/f", Write, Create)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Remove("/d"), errNotEmpty)
	require.NoError(t, m.Remove("/d/f"))
	assert.NoError(t, m.Remove("/d"))
}

func TestMemFSCapacity(t *testing.T) {
	m := NewMemFS()
	m.capacity = 8

	f, err := m.Open("/f", Write, Create)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("12345678"), 0)
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("9"), 8)
	assert.ErrorIs(t, err, errNoSpace)

	// Truncating releases space.
	require.NoError(t, f.Truncate(0))
	_, err = f.WriteAt([]byte("abcd"), 0)
	assert.NoError(t, err)
}

func TestMemFSMkdirRequiresParent(t *testing.T) {
	m := NewMemFS()

	assert.ErrorIs(t, m.Mkdir("/a/b"), fs.ErrNotExist)
	require.NoError(t, m.Mkdir("/a"))
	assert.NoError(t, m.Mkdir("/a/b"))
	assert.ErrorIs(t, m.Mkdir("/a"), fs.ErrExist)
}

func TestMemFSDeviceIdentity(t *testing.T) {
	a, b := NewMemFS(), NewMemFS()

	statA, err := a.Stat("/", true)
	require.NoError(t, err)
	statB, err := b.Stat("/", true)
	require.NoError(t, err)

	assert.NotZero(t, statA.Device)
	assert.NotEqual(t, statA.Device, statB.Device)
}
