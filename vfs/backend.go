package vfs

import (
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/pgavlin/xos/sys"
)

// PathMax is the maximum length of a canonical path, terminator included.
const PathMax = 256

// FileKind is the coarse classification of a filesystem entity.
type FileKind uint8

const (
	KindFile FileKind = iota
	KindDirectory
	KindSymbolicLink
	KindCharacterDevice
	KindBlockDevice
	KindPipe
	KindSocket
)

var kindNames = [...]string{
	KindFile:            "file",
	KindDirectory:       "directory",
	KindSymbolicLink:    "symlink",
	KindCharacterDevice: "chardev",
	KindBlockDevice:     "blockdev",
	KindPipe:            "pipe",
	KindSocket:          "socket",
}

func (k FileKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// FileStat is an immutable snapshot of a filesystem entity. Timestamps are
// nanoseconds since the epoch.
type FileStat struct {
	Device           uint64
	Inode            uint64
	Links            uint64
	Size             uint64
	AccessTime       uint64
	ModificationTime uint64
	ChangeTime       uint64
	Kind             FileKind
}

// A DirEntry is a single entry read from a directory.
type DirEntry struct {
	Name  string
	Kind  FileKind
	Size  uint64
	Inode uint64
}

// ErrUnsupported is returned by backends for operations they cannot express.
var ErrUnsupported = errors.New("operation not supported")

// A File is an open backend file. Offsets are managed by the facade, so all
// I/O is positioned; backends never track a cursor.
type File interface {
	ReadAt(p []byte, offset int64) (int, error)
	WriteAt(p []byte, offset int64) (int, error)
	Truncate(size uint64) error
	Allocate(offset, length uint64) error
	Stat() (FileStat, error)
	Sync(metadata bool) error
	Close() error
}

// A Backend is the filesystem tree the facade fronts. All paths are absolute
// and use "/" as the separator. Backends report failures as Go errors built
// on the fs.Err* sentinels; the facade translates them into result codes.
type Backend interface {
	Open(path string, mode AccessMode, flags OpenFlags) (File, error)
	Stat(path string, followLinks bool) (FileStat, error)
	ReadDir(path string) ([]DirEntry, error)
	Mkdir(path string) error
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Link(oldPath, newPath string) error
	Symlink(target, linkPath string) error
	SetTimes(path string, accessTime, modificationTime *time.Time, followLinks bool) error
}

// resultOf translates a backend error into the boundary code set.
func resultOf(err error) sys.Result {
	switch {
	case err == nil:
		return sys.Success
	case errors.Is(err, io.EOF):
		return sys.Success
	case errors.Is(err, fs.ErrNotExist):
		return sys.NotFound
	case errors.Is(err, fs.ErrExist):
		return sys.AlreadyExists
	case errors.Is(err, fs.ErrPermission):
		return sys.PermissionDenied
	case errors.Is(err, fs.ErrInvalid):
		return sys.InvalidInput
	case errors.Is(err, fs.ErrClosed):
		return sys.InvalidIdentifier
	case errors.Is(err, ErrUnsupported):
		return sys.UnsupportedOperation
	case errors.Is(err, errNoSpace):
		return sys.FileSystemFull
	case errors.Is(err, errNotDirectory):
		return sys.InvalidDirectory
	case errors.Is(err, errIsDirectory):
		return sys.InvalidFile
	case errors.Is(err, errNotEmpty):
		return sys.ResourceBusy
	default:
		return sys.FileSystemError
	}
}

var (
	errNoSpace      = errors.New("no space left on device")
	errNotDirectory = errors.New("not a directory")
	errIsDirectory  = errors.New("is a directory")
	errNotEmpty     = errors.New("directory not empty")
)
