package wasi

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pgavlin/xos/sys"
	"github.com/pgavlin/xos/task"
	"github.com/pgavlin/xos/vfs"
)

// A Bridge is the translation layer between the WASI-shaped surface the
// engine's libc consumes and the host personality behind it. It owns no
// resources; every call forwards to the file system facade or the task
// engine and translates codes at the boundary.
type Bridge struct {
	fs     *vfs.FileSystem
	engine *task.Engine
	logger hclog.Logger
	epoch  time.Time
}

// NewBridge creates a bridge over the facade and engine.
func NewBridge(fs *vfs.FileSystem, engine *task.Engine, logger hclog.Logger) *Bridge {
	if logger == nil {
		logger = hclog.Default().Named("wasi")
	}
	return &Bridge{fs: fs, engine: engine, logger: logger, epoch: time.Now()}
}

// FS returns the facade behind the bridge.
func (b *Bridge) FS() *vfs.FileSystem { return b.fs }

// Engine returns the task engine behind the bridge.
func (b *Bridge) Engine() *task.Engine { return b.engine }

// InvalidHandle returns the handle guaranteed to fail every operation.
func (b *Bridge) InvalidHandle() sys.Handle { return sys.InvalidHandle }

// InvalidDirStream returns the directory stream guaranteed to fail every
// operation.
func (b *Bridge) InvalidDirStream() sys.Handle { return sys.InvalidHandle }

// IsHandleValid reports whether h is not the invalid sentinel.
func (b *Bridge) IsHandleValid(h sys.Handle) bool { return h != sys.InvalidHandle }

// IsDirStreamValid reports whether h is not the invalid sentinel.
func (b *Bridge) IsDirStreamValid(h sys.Handle) bool { return h != sys.InvalidHandle }

// rooted prefixes a relative path with the VFS root separator. The backing
// file system only resolves absolute paths, so the rewrite is observable to
// guests that pass relative paths to *at operations.
func rooted(path string) string {
	if len(path) == 0 || path[0] != '/' {
		return "/" + path
	}
	return path
}

// Fstat returns the statistics of the open file behind h.
func (b *Bridge) Fstat(h sys.Handle) (Filestat, Errno) {
	stat, res := b.fs.GetStatistics(h)
	if res != sys.Success {
		return Filestat{}, ErrnoOf(res)
	}
	return FilestatOf(stat), ErrnoSuccess
}

// Fstatat returns the statistics of the entity at path, resolved against the
// VFS root.
func (b *Bridge) Fstatat(dir sys.Handle, path string, lookup Lookupflags) (Filestat, Errno) {
	follow := lookup&LookupflagSymlinkFollow != 0
	stat, res := b.fs.GetStatisticsFromPath(rooted(path), follow)
	if res != sys.Success {
		return Filestat{}, ErrnoOf(res)
	}
	return FilestatOf(stat), ErrnoSuccess
}

// FdflagsGet returns the status flags of h.
func (b *Bridge) FdflagsGet(h sys.Handle) (Fdflags, Errno) {
	status, res := b.fs.GetFlags(h)
	if res != sys.Success {
		return 0, ErrnoOf(res)
	}
	return FdflagsOf(status), ErrnoSuccess
}

// FdflagsSet replaces the status flags of h.
func (b *Bridge) FdflagsSet(h sys.Handle, flags Fdflags) Errno {
	return ErrnoOf(b.fs.SetFlags(h, StatusFlagsOf(flags)))
}

// Fdatasync synchronizes the data of h to stable storage.
func (b *Bridge) Fdatasync(h sys.Handle) Errno {
	return ErrnoOf(b.fs.Flush(h, false))
}

// Fsync synchronizes the data and metadata of h to stable storage.
func (b *Bridge) Fsync(h sys.Handle) Errno {
	return ErrnoOf(b.fs.Flush(h, true))
}

// OpenPreopenDirectory opens a preopen directory; the handle is read-only.
func (b *Bridge) OpenPreopenDirectory(path string) (sys.Handle, Errno) {
	h, res := b.fs.PreopenDirectory(path)
	return h, ErrnoOf(res)
}

// OpenAt opens a file or directory below the given directory handle.
func (b *Bridge) OpenAt(dir sys.Handle, path string, oflags Oflags, fdflags Fdflags, lookup Lookupflags, mode AccessMode) (sys.Handle, Errno) {
	follow := lookup&LookupflagSymlinkFollow != 0
	h, res := b.fs.OpenAt(dir, path, oflags&OflagDirectory != 0, ModeOf(mode), OpenFlagsOf(oflags), StatusFlagsOf(fdflags), follow)
	return h, ErrnoOf(res)
}

// AccessModeGet returns the access mode fixed when h was opened.
func (b *Bridge) AccessModeGet(h sys.Handle) (AccessMode, Errno) {
	mode, res := b.fs.GetAccessMode(h)
	if res != sys.Success {
		return 0, ErrnoOf(res)
	}
	return AccessModeOf(mode), ErrnoSuccess
}

// Close closes h. The stdio marker is advisory: the facade never closes a
// stdio descriptor's raw stream.
func (b *Bridge) Close(h sys.Handle, isStdio bool) Errno {
	return ErrnoOf(b.fs.Close(h))
}

// Readv reads into buffers at the current position.
func (b *Bridge) Readv(h sys.Handle, buffers [][]byte) (int, Errno) {
	n, res := b.fs.ReadVectored(h, buffers)
	return n, ErrnoOf(res)
}

// Writev writes from buffers at the current position.
func (b *Bridge) Writev(h sys.Handle, buffers [][]byte) (int, Errno) {
	n, res := b.fs.WriteVectored(h, buffers)
	return n, ErrnoOf(res)
}

// Preadv reads into buffers at offset without moving the position.
func (b *Bridge) Preadv(h sys.Handle, buffers [][]byte, offset Filesize) (int, Errno) {
	n, res := b.fs.PositionedReadVectored(h, buffers, offset)
	return n, ErrnoOf(res)
}

// Pwritev writes from buffers at offset without moving the position.
func (b *Bridge) Pwritev(h sys.Handle, buffers [][]byte, offset Filesize) (int, Errno) {
	n, res := b.fs.PositionedWriteVectored(h, buffers, offset)
	return n, ErrnoOf(res)
}

// Fallocate reserves storage for [offset, offset+length).
func (b *Bridge) Fallocate(h sys.Handle, offset, length Filesize) Errno {
	return ErrnoOf(b.fs.Allocate(h, offset, length))
}

// Ftruncate adjusts the file to exactly size bytes.
func (b *Bridge) Ftruncate(h sys.Handle, size Filesize) Errno {
	return ErrnoOf(b.fs.Truncate(h, size))
}

// Futimens adjusts the timestamps of the open file behind h.
func (b *Bridge) Futimens(h sys.Handle, accessTime, modificationTime Timestamp, flags Fstflags) Errno {
	return ErrnoOf(b.fs.SetTimes(h, accessTime, modificationTime, TimeFlagsOf(flags)))
}

// Utimensat adjusts the timestamps of the entity at path.
func (b *Bridge) Utimensat(dir sys.Handle, path string, accessTime, modificationTime Timestamp, flags Fstflags, lookup Lookupflags) Errno {
	follow := lookup&LookupflagSymlinkFollow != 0
	return ErrnoOf(b.fs.SetTimesFromPath(rooted(path), accessTime, modificationTime, TimeFlagsOf(flags), follow))
}

// Readlinkat is not provided by the personality; link contents never cross
// the boundary.
func (b *Bridge) Readlinkat(dir sys.Handle, path string, buf []byte) (int, Errno) {
	return 0, ErrnoInval
}

// Linkat creates a hard link.
func (b *Bridge) Linkat(fromDir sys.Handle, fromPath string, toDir sys.Handle, toPath string, lookup Lookupflags) Errno {
	return ErrnoOf(b.fs.Link(rooted(fromPath), rooted(toPath)))
}

// Symlinkat creates a symbolic link at linkPath with the given contents.
func (b *Bridge) Symlinkat(target string, dir sys.Handle, linkPath string) Errno {
	return ErrnoOf(b.fs.SymlinkAt(dir, target, linkPath))
}

// Mkdirat creates a directory.
func (b *Bridge) Mkdirat(dir sys.Handle, path string) Errno {
	return ErrnoOf(b.fs.CreateDirectory(rooted(path)))
}

// Renameat renames a file or directory.
func (b *Bridge) Renameat(oldDir sys.Handle, oldPath string, newDir sys.Handle, newPath string) Errno {
	return ErrnoOf(b.fs.Rename(rooted(oldPath), rooted(newPath)))
}

// Unlinkat removes a file or empty directory.
func (b *Bridge) Unlinkat(dir sys.Handle, path string, isDir bool) Errno {
	return ErrnoOf(b.fs.Remove(rooted(path)))
}

// Lseek moves the position of h and returns the new position.
func (b *Bridge) Lseek(h sys.Handle, offset Filedelta, whence Whence) (Filesize, Errno) {
	position, res := b.fs.Seek(h, offset, WhenceOf(whence))
	return position, ErrnoOf(res)
}

// Fadvise accepts access-pattern advice. The personality has no use for it.
func (b *Bridge) Fadvise(h sys.Handle, offset, length Filesize, advice uint8) Errno {
	if _, res := b.fs.GetAccessMode(h); res != sys.Success {
		return ErrnoOf(res)
	}
	return ErrnoSuccess
}

// IsATTY reports success when h refers to a terminal device.
func (b *Bridge) IsATTY(h sys.Handle) Errno {
	terminal, res := b.fs.IsTerminal(h)
	if terminal {
		return ErrnoSuccess
	}
	if res != sys.Success {
		return ErrnoOf(res)
	}
	return ErrnoNotty
}

// Fdopendir opens a directory stream over the directory descriptor h.
func (b *Bridge) Fdopendir(h sys.Handle) (sys.Handle, Errno) {
	stream, res := b.fs.OpenDirectory(h)
	return stream, ErrnoOf(res)
}

// Rewinddir resets the stream to the first entry.
func (b *Bridge) Rewinddir(stream sys.Handle) Errno {
	return ErrnoOf(b.fs.RewindDirectory(stream))
}

// Seekdir moves the stream to the given cookie.
func (b *Bridge) Seekdir(stream sys.Handle, cookie Dircookie) Errno {
	return ErrnoOf(b.fs.SetDirectoryPosition(stream, cookie))
}

// Readdir returns the next entry of the stream. The end of the directory is
// reported as success with an empty name.
func (b *Bridge) Readdir(stream sys.Handle) (Dirent, string, Errno) {
	entry, res := b.fs.ReadDirectory(stream)
	if res != sys.Success || entry.Name == "" {
		return Dirent{}, "", ErrnoOf(res)
	}
	return Dirent{
		Ino:     entry.Inode,
		Namelen: uint32(len(entry.Name)),
		Type:    FiletypeOf(entry.Kind),
	}, entry.Name, ErrnoSuccess
}

// Closedir closes the stream; the backing descriptor stays open.
func (b *Bridge) Closedir(stream sys.Handle) Errno {
	return ErrnoOf(b.fs.CloseDirectory(stream))
}

// Realpath copies path into resolved verbatim, NUL-terminated and capped at
// PathMax. Dot segments are deliberately not resolved.
func (b *Bridge) Realpath(path string, resolved []byte) Errno {
	return ErrnoOf(b.fs.ResolvePath(path, resolved))
}

// ConvertStdinHandle maps a raw stdin handle onto the reserved descriptor.
func (b *Bridge) ConvertStdinHandle(raw sys.Handle) sys.Handle {
	if raw != sys.InvalidHandle {
		return raw
	}
	return b.fs.Stdin()
}

// ConvertStdoutHandle maps a raw stdout handle onto the reserved descriptor.
func (b *Bridge) ConvertStdoutHandle(raw sys.Handle) sys.Handle {
	if raw != sys.InvalidHandle {
		return raw
	}
	return b.fs.Stdout()
}

// ConvertStderrHandle maps a raw stderr handle onto the reserved descriptor.
func (b *Bridge) ConvertStderrHandle(raw sys.Handle) sys.Handle {
	if raw != sys.InvalidHandle {
		return raw
	}
	return b.fs.Stderr()
}

// IsStdinHandle reports whether h is the reserved stdin descriptor.
func (b *Bridge) IsStdinHandle(h sys.Handle) bool { return b.fs.IsStdin(h) }

// IsStdoutHandle reports whether h is the reserved stdout descriptor.
func (b *Bridge) IsStdoutHandle(h sys.Handle) bool { return b.fs.IsStdout(h) }

// IsStderrHandle reports whether h is the reserved stderr descriptor.
func (b *Bridge) IsStderrHandle(h sys.Handle) bool { return b.fs.IsStderr(h) }

// ClockResGet returns the resolution of the given clock.
func (b *Bridge) ClockResGet(id Clockid) (Timestamp, Errno) {
	switch id {
	case ClockidRealtime:
		return Timestamp(time.Millisecond), ErrnoSuccess
	case ClockidMonotonic:
		return Timestamp(time.Nanosecond), ErrnoSuccess
	default:
		return 0, ErrnoInval
	}
}

// ClockTimeGet returns the current time of the given clock.
func (b *Bridge) ClockTimeGet(id Clockid, precision Timestamp) (Timestamp, Errno) {
	switch id {
	case ClockidRealtime:
		return Timestamp(time.Now().UnixNano()), ErrnoSuccess
	case ClockidMonotonic:
		return Timestamp(time.Since(b.epoch)), ErrnoSuccess
	default:
		return 0, ErrnoInval
	}
}
