package vfs

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgavlin/xos/sys"
)

func newTestFS(t *testing.T) (*FileSystem, *sys.Registry) {
	t.Helper()
	registry := sys.NewRegistry(256)
	fs, res := New(NewMemFS(), registry, &Options{
		Stdin:  bytes.NewReader(nil),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	})
	require.Equal(t, sys.Success, res)
	return fs, registry
}

func TestOpenWriteSeekReadRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t)

	root, res := fs.PreopenDirectory("/")
	require.Equal(t, sys.Success, res)

	h, res := fs.OpenAt(root, "a.txt", false, ReadWrite, Create|Truncate, 0, true)
	require.Equal(t, sys.Success, res)

	n, res := fs.WriteVectored(h, [][]byte{[]byte("hello"), []byte(" world")})
	require.Equal(t, sys.Success, res)
	require.Equal(t, 11, n)

	position, res := fs.Seek(h, 0, Start)
	require.Equal(t, sys.Success, res)
	require.Equal(t, uint64(0), position)

	buf := make([]byte, 11)
	n, res = fs.ReadVectored(h, [][]byte{buf})
	require.Equal(t, sys.Success, res)
	require.Equal(t, 11, n)
	assert.Equal(t, "hello world", string(buf))
}

func TestDirectoryIteration(t *testing.T) {
	fs, _ := newTestFS(t)

	require.Equal(t, sys.Success, fs.CreateDirectory("/d"))

	for _, name := range []string{"/d/x", "/d/y"} {
		h, res := fs.Open(name, Write, Create, 0)
		require.Equal(t, sys.Success, res)
		require.Equal(t, sys.Success, fs.Close(h))
	}

	root, res := fs.PreopenDirectory("/")
	require.Equal(t, sys.Success, res)
	dir, res := fs.OpenAt(root, "d", true, Read, 0, 0, true)
	require.Equal(t, sys.Success, res)

	stream, res := fs.OpenDirectory(dir)
	require.Equal(t, sys.Success, res)

	read := func() []string {
		var names []string
		for {
			entry, res := fs.ReadDirectory(stream)
			require.Equal(t, sys.Success, res)
			if entry.Name == "" {
				break
			}
			names = append(names, entry.Name)
		}
		sort.Strings(names)
		return names
	}

	assert.Equal(t, []string{"x", "y"}, read())

	// Rewind restarts from the first entry; double rewind is idempotent.
	require.Equal(t, sys.Success, fs.RewindDirectory(stream))
	require.Equal(t, sys.Success, fs.RewindDirectory(stream))
	assert.Equal(t, []string{"x", "y"}, read())

	// Closing the stream leaves the directory descriptor usable.
	require.Equal(t, sys.Success, fs.CloseDirectory(stream))
	_, res = fs.OpenDirectory(dir)
	assert.Equal(t, sys.Success, res)
}

func TestDirectoryCookieSeek(t *testing.T) {
	fs, _ := newTestFS(t)

	require.Equal(t, sys.Success, fs.CreateDirectory("/d"))
	for _, name := range []string{"/d/a", "/d/b", "/d/c"} {
		h, res := fs.Open(name, Write, Create, 0)
		require.Equal(t, sys.Success, res)
		require.Equal(t, sys.Success, fs.Close(h))
	}

	dir, res := fs.openDirectoryPath("/d")
	require.Equal(t, sys.Success, res)
	stream, res := fs.OpenDirectory(dir)
	require.Equal(t, sys.Success, res)

	first, res := fs.ReadDirectory(stream)
	require.Equal(t, sys.Success, res)

	require.Equal(t, sys.Success, fs.SetDirectoryPosition(stream, 0))
	again, res := fs.ReadDirectory(stream)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, first.Name, again.Name)
}

func TestCreateOnlyConflict(t *testing.T) {
	fs, _ := newTestFS(t)

	root, res := fs.PreopenDirectory("/")
	require.Equal(t, sys.Success, res)

	h, res := fs.OpenAt(root, "a.txt", false, Write, Create|CreateOnly, 0, true)
	require.Equal(t, sys.Success, res)
	require.Equal(t, sys.Success, fs.Close(h))

	_, res = fs.OpenAt(root, "a.txt", false, Write, Create|CreateOnly, 0, true)
	assert.Equal(t, sys.AlreadyExists, res)
}

func TestOpenMissingWithoutCreate(t *testing.T) {
	fs, _ := newTestFS(t)

	_, res := fs.Open("/missing", Read, 0, 0)
	assert.Equal(t, sys.NotFound, res)
}

func TestTruncateOnDirectory(t *testing.T) {
	fs, _ := newTestFS(t)

	require.Equal(t, sys.Success, fs.CreateDirectory("/d"))
	_, res := fs.Open("/d", ReadWrite, Truncate, 0)
	assert.Equal(t, sys.UnsupportedOperation, res)
}

func TestUseAfterCloseFails(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, 0)
	require.Equal(t, sys.Success, res)
	require.Equal(t, sys.Success, fs.Close(h))

	_, res = fs.ReadVectored(h, [][]byte{make([]byte, 4)})
	assert.Equal(t, sys.InvalidIdentifier, res)
	assert.Equal(t, sys.InvalidIdentifier, fs.Close(h))
}

func TestAccessModeEnforcement(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", Write, Create, 0)
	require.Equal(t, sys.Success, res)

	_, res = fs.ReadVectored(h, [][]byte{make([]byte, 4)})
	assert.Equal(t, sys.PermissionDenied, res)

	readOnly, res := fs.Open("/f", Read, 0, 0)
	require.Equal(t, sys.Success, res)
	_, res = fs.WriteVectored(readOnly, [][]byte{[]byte("x")})
	assert.Equal(t, sys.PermissionDenied, res)
	assert.Equal(t, sys.PermissionDenied, fs.Truncate(readOnly, 0))
}

func TestSeekSemantics(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, 0)
	require.Equal(t, sys.Success, res)

	_, res = fs.WriteVectored(h, [][]byte{[]byte("0123456789")})
	require.Equal(t, sys.Success, res)

	// seek(h, 0, Current) returns the position before the call.
	position, res := fs.Seek(h, 0, Current)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(10), position)

	position, res = fs.Seek(h, -4, End)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(6), position)

	_, res = fs.Seek(h, -1, Start)
	assert.Equal(t, sys.InvalidInput, res)
}

func TestPositionedIOKeepsPosition(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, 0)
	require.Equal(t, sys.Success, res)

	_, res = fs.PositionedWriteVectored(h, [][]byte{[]byte("abcdef")}, 0)
	require.Equal(t, sys.Success, res)

	position, res := fs.Seek(h, 0, Current)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(0), position)

	buf := make([]byte, 3)
	n, res := fs.PositionedReadVectored(h, [][]byte{buf}, 3)
	require.Equal(t, sys.Success, res)
	require.Equal(t, 3, n)
	assert.Equal(t, "def", string(buf))

	position, res = fs.Seek(h, 0, Current)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(0), position)
}

func TestReadVectoredShortAtEOF(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, 0)
	require.Equal(t, sys.Success, res)
	_, res = fs.WriteVectored(h, [][]byte{[]byte("abc")})
	require.Equal(t, sys.Success, res)
	_, res = fs.Seek(h, 0, Start)
	require.Equal(t, sys.Success, res)

	first, second := make([]byte, 2), make([]byte, 8)
	n, res := fs.ReadVectored(h, [][]byte{first, second})
	require.Equal(t, sys.Success, res)
	assert.Equal(t, 3, n)
	assert.Equal(t, "ab", string(first))
	assert.Equal(t, byte('c'), second[0])
}

func TestAppendMode(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, Append)
	require.Equal(t, sys.Success, res)
	_, res = fs.WriteVectored(h, [][]byte{[]byte("one")})
	require.Equal(t, sys.Success, res)

	// A second descriptor appends past the first writer's data.
	other, res := fs.Open("/f", Write, 0, Append)
	require.Equal(t, sys.Success, res)
	_, res = fs.WriteVectored(other, [][]byte{[]byte("two")})
	require.Equal(t, sys.Success, res)

	stat, res := fs.GetStatistics(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(6), stat.Size)
}

func TestStatusFlagsRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, NonBlocking)
	require.Equal(t, sys.Success, res)

	flags, res := fs.GetFlags(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, NonBlocking, flags)

	require.Equal(t, sys.Success, fs.SetFlags(h, Append|Synchronous))
	flags, res = fs.GetFlags(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, Append|Synchronous, flags)

	mode, res := fs.GetAccessMode(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, ReadWrite, mode)
}

func TestPathMutations(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/a", Write, Create, 0)
	require.Equal(t, sys.Success, res)
	_, res = fs.WriteVectored(h, [][]byte{[]byte("data")})
	require.Equal(t, sys.Success, res)
	require.Equal(t, sys.Success, fs.Close(h))

	require.Equal(t, sys.Success, fs.Rename("/a", "/b"))
	_, res = fs.GetStatisticsFromPath("/a", true)
	assert.Equal(t, sys.NotFound, res)

	require.Equal(t, sys.Success, fs.Link("/b", "/c"))
	stat, res := fs.GetStatisticsFromPath("/c", true)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(2), stat.Links)

	require.Equal(t, sys.Success, fs.Remove("/c"))
	stat, res = fs.GetStatisticsFromPath("/b", true)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(1), stat.Links)

	root, res := fs.PreopenDirectory("/")
	require.Equal(t, sys.Success, res)
	require.Equal(t, sys.Success, fs.SymlinkAt(root, "/b", "lnk"))

	stat, res = fs.GetStatisticsFromPath("/lnk", false)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, KindSymbolicLink, stat.Kind)

	stat, res = fs.GetStatisticsFromPath("/lnk", true)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, KindFile, stat.Kind)
	assert.Equal(t, uint64(4), stat.Size)
}

func TestStdioRecognition(t *testing.T) {
	fs, _ := newTestFS(t)

	assert.True(t, fs.IsStdin(fs.Stdin()))
	assert.True(t, fs.IsStdout(fs.Stdout()))
	assert.True(t, fs.IsStderr(fs.Stderr()))
	assert.False(t, fs.IsStdin(fs.Stdout()))

	// Closing stdout releases the handle but leaves the stream open.
	var sink bytes.Buffer
	registry := sys.NewRegistry(16)
	other, res := New(NewMemFS(), registry, &Options{Stdout: &sink})
	require.Equal(t, sys.Success, res)

	_, res = other.WriteVectored(other.Stdout(), [][]byte{[]byte("x")})
	require.Equal(t, sys.Success, res)
	require.Equal(t, sys.Success, other.Close(other.Stdout()))
	assert.Equal(t, "x", sink.String())
}

func TestResolvePath(t *testing.T) {
	fs, _ := newTestFS(t)

	buf := make([]byte, 16)
	require.Equal(t, sys.Success, fs.ResolvePath("/a/./b/../c", buf))
	assert.Equal(t, "/a/./b/../c", string(buf[:11]))
	assert.Equal(t, byte(0), buf[11])

	// Truncation keeps the terminator.
	small := make([]byte, 4)
	require.Equal(t, sys.Success, fs.ResolvePath("/abcdef", small))
	assert.Equal(t, "/ab", string(small[:3]))
	assert.Equal(t, byte(0), small[3])

	assert.Equal(t, sys.InvalidInput, fs.ResolvePath("/x", nil))
}

func TestOpenAtNormalizesRelativePaths(t *testing.T) {
	fs, _ := newTestFS(t)

	root, res := fs.PreopenDirectory("/")
	require.Equal(t, sys.Success, res)

	// The relative path is rewritten to "/f" before dispatch.
	h, res := fs.OpenAt(root, "f", false, Write, Create, 0, true)
	require.Equal(t, sys.Success, res)
	require.Equal(t, sys.Success, fs.Close(h))

	_, res = fs.GetStatisticsFromPath("/f", true)
	assert.Equal(t, sys.Success, res)

	// Directory opens rewrite the leading dot instead.
	require.Equal(t, sys.Success, fs.CreateDirectory("/sub"))
	dir, res := fs.OpenAt(root, "./sub", true, Read, 0, 0, true)
	require.Equal(t, sys.Success, res)
	_, res = fs.OpenDirectory(dir)
	assert.Equal(t, sys.Success, res)
}

func TestTruncateAndAllocate(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, 0)
	require.Equal(t, sys.Success, res)
	_, res = fs.WriteVectored(h, [][]byte{[]byte("0123456789")})
	require.Equal(t, sys.Success, res)

	require.Equal(t, sys.Success, fs.Truncate(h, 4))
	stat, res := fs.GetStatistics(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(4), stat.Size)

	// Allocate grows but never shrinks.
	require.Equal(t, sys.Success, fs.Allocate(h, 0, 16))
	stat, res = fs.GetStatistics(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(16), stat.Size)

	require.Equal(t, sys.Success, fs.Allocate(h, 0, 2))
	stat, res = fs.GetStatistics(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(16), stat.Size)
}

func TestSetTimes(t *testing.T) {
	fs, _ := newTestFS(t)

	h, res := fs.Open("/f", ReadWrite, Create, 0)
	require.Equal(t, sys.Success, res)

	require.Equal(t, sys.Success, fs.SetTimes(h, 1000, 2000, AccessTime|ModificationTime))
	stat, res := fs.GetStatistics(h)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(1000), stat.AccessTime)
	assert.Equal(t, uint64(2000), stat.ModificationTime)

	require.Equal(t, sys.Success, fs.SetTimesFromPath("/f", 0, 0, ModificationTimeNow, true))
	stat, res = fs.GetStatisticsFromPath("/f", true)
	require.Equal(t, sys.Success, res)
	assert.Equal(t, uint64(1000), stat.AccessTime)
	assert.NotEqual(t, uint64(2000), stat.ModificationTime)
}
