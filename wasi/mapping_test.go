package wasi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgavlin/xos/sys"
	"github.com/pgavlin/xos/vfs"
)

func TestErrnoMapping(t *testing.T) {
	cases := []struct {
		res   sys.Result
		errno Errno
	}{
		{sys.Success, ErrnoSuccess},
		{sys.NotFound, ErrnoNoent},
		{sys.PermissionDenied, ErrnoAcces},
		{sys.AlreadyExists, ErrnoExist},
		{sys.InvalidPath, ErrnoInval},
		{sys.UnsupportedOperation, ErrnoNotsup},
		{sys.ResourceBusy, ErrnoBusy},
		{sys.TooManyOpenFiles, ErrnoMfile},
		{sys.FileSystemFull, ErrnoNospc},
	}
	for _, c := range cases {
		assert.Equal(t, c.errno, ErrnoOf(c.res), "forward %v", c.res)
		// Round trip through the inverse mapping.
		assert.Equal(t, c.errno, ErrnoOf(ResultOf(c.errno)), "round trip %v", c.errno)
	}

	// Codes with no individual mapping collapse to ECANCELED.
	assert.Equal(t, ErrnoCanceled, ErrnoOf(sys.InternalError))
	assert.Equal(t, ErrnoCanceled, ErrnoOf(sys.PoisonedLock))
	assert.Equal(t, ErrnoCanceled, ErrnoOf(sys.Result(999)))
}

func TestFiletypeRoundTrip(t *testing.T) {
	kinds := []vfs.FileKind{
		vfs.KindFile,
		vfs.KindDirectory,
		vfs.KindSymbolicLink,
		vfs.KindCharacterDevice,
		vfs.KindBlockDevice,
		vfs.KindSocket,
		vfs.KindPipe,
	}
	for _, kind := range kinds {
		assert.Equal(t, kind, FileKindOf(FiletypeOf(kind)), "round trip %v", kind)
	}

	// Pipes have no WASI filetype of their own.
	assert.Equal(t, FiletypeUnknown, FiletypeOf(vfs.KindPipe))
	assert.Equal(t, FiletypeSocketDgram, FiletypeOf(vfs.KindSocket))
	assert.Equal(t, vfs.KindSocket, FileKindOf(FiletypeSocketStream))
}

func TestAccessModeRoundTrip(t *testing.T) {
	assert.Equal(t, AccessModeReadOnly, AccessModeOf(vfs.Read))
	assert.Equal(t, AccessModeWriteOnly, AccessModeOf(vfs.Write))
	assert.Equal(t, AccessModeReadWrite, AccessModeOf(vfs.ReadWrite))

	for _, mode := range []vfs.AccessMode{vfs.Read, vfs.Write, vfs.ReadWrite} {
		assert.Equal(t, mode, ModeOf(AccessModeOf(mode)))
	}
}

func TestOpenFlagsRoundTrip(t *testing.T) {
	assert.Equal(t, vfs.Create, OpenFlagsOf(OflagCreat))
	assert.Equal(t, vfs.CreateOnly, OpenFlagsOf(OflagExcl))
	assert.Equal(t, vfs.Truncate, OpenFlagsOf(OflagTrunc))

	for flags := vfs.OpenFlags(0); flags <= vfs.Create|vfs.CreateOnly|vfs.Truncate; flags++ {
		assert.Equal(t, flags, OpenFlagsOf(OflagsOf(flags)), "round trip %b", flags)
	}

	// The directory bit is routing, not an open flag.
	assert.Equal(t, vfs.OpenFlags(0), OpenFlagsOf(OflagDirectory))
}

func TestStatusFlagsRoundTrip(t *testing.T) {
	assert.Equal(t, vfs.Append, StatusFlagsOf(FdflagAppend))
	assert.Equal(t, vfs.Synchronous, StatusFlagsOf(FdflagSync))
	assert.Equal(t, vfs.SynchronousDataOnly, StatusFlagsOf(FdflagDsync))
	assert.Equal(t, vfs.NonBlocking, StatusFlagsOf(FdflagNonblock))

	all := vfs.Append | vfs.NonBlocking | vfs.Synchronous | vfs.SynchronousDataOnly
	for flags := vfs.StatusFlags(0); flags <= all; flags++ {
		assert.Equal(t, flags, StatusFlagsOf(FdflagsOf(flags)), "round trip %b", flags)
	}
}

func TestWhenceMapping(t *testing.T) {
	assert.Equal(t, vfs.Current, WhenceOf(WhenceCur))
	assert.Equal(t, vfs.End, WhenceOf(WhenceEnd))
	assert.Equal(t, vfs.Start, WhenceOf(WhenceSet))

	// Any unknown origin is the start origin.
	assert.Equal(t, vfs.Start, WhenceOf(Whence(99)))

	for _, whence := range []vfs.Whence{vfs.Start, vfs.Current, vfs.End} {
		assert.Equal(t, whence, WhenceOf(WasiWhenceOf(whence)))
	}
}

func TestFilestatOf(t *testing.T) {
	stat := FilestatOf(vfs.FileStat{
		Device:           7,
		Inode:            42,
		Links:            2,
		Size:             1024,
		AccessTime:       1,
		ModificationTime: 2,
		ChangeTime:       3,
		Kind:             vfs.KindDirectory,
	})
	assert.Equal(t, uint64(7), stat.Dev)
	assert.Equal(t, uint64(42), stat.Ino)
	assert.Equal(t, uint64(2), stat.Nlink)
	assert.Equal(t, Filesize(1024), stat.Size)
	assert.Equal(t, Timestamp(1), stat.Atim)
	assert.Equal(t, Timestamp(2), stat.Mtim)
	assert.Equal(t, Timestamp(3), stat.Ctim)
	assert.Equal(t, FiletypeDirectory, stat.Filetype)
}
