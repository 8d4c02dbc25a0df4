package vfs

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pgavlin/xos/sys"
)

type stdioKind uint8

const (
	stdioNone stdioKind = iota
	stdioIn
	stdioOut
	stdioErr
)

// A descriptor is the per-handle state owned by the facade: the backing file,
// the immutable access mode and open flags, the mutable status flags, and the
// I/O position. All of it is guarded by the descriptor mutex.
type descriptor struct {
	m sync.Mutex

	file     File
	path     string
	mode     AccessMode
	open     OpenFlags
	status   StatusFlags
	position uint64

	directory bool
	preopen   bool
	stdio     stdioKind
}

// Options configures the stdio streams handed to guests.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// A FileSystem owns the descriptor and directory-stream tables above a
// Backend. It adds no policy of its own: operations forward to the backend
// and translate its errors into result codes.
type FileSystem struct {
	backend  Backend
	registry *sys.Registry

	stdin  sys.Handle
	stdout sys.Handle
	stderr sys.Handle
}

// New creates a facade over backend. The three stdio descriptors are minted
// immediately and stay live until they are closed.
func New(backend Backend, registry *sys.Registry, opts *Options) (*FileSystem, sys.Result) {
	var stdin io.Reader
	var stdout, stderr io.Writer
	if opts != nil {
		stdin, stdout, stderr = opts.Stdin, opts.Stdout, opts.Stderr
	}

	f := &FileSystem{backend: backend, registry: registry}

	var res sys.Result
	if f.stdin, res = f.mintStdio(stdioIn, newStreamFile(stdin, nil), Read); res != sys.Success {
		return nil, res
	}
	if f.stdout, res = f.mintStdio(stdioOut, newStreamFile(nil, stdout), Write); res != sys.Success {
		return nil, res
	}
	if f.stderr, res = f.mintStdio(stdioErr, newStreamFile(nil, stderr), Write); res != sys.Success {
		return nil, res
	}
	return f, sys.Success
}

func (f *FileSystem) mintStdio(kind stdioKind, file File, mode AccessMode) (sys.Handle, sys.Result) {
	return f.registry.Mint(sys.KindFile, &descriptor{
		file:   file,
		mode:   mode,
		status: Append,
		stdio:  kind,
	})
}

// Stdin returns the reserved stdin handle.
func (f *FileSystem) Stdin() sys.Handle { return f.stdin }

// Stdout returns the reserved stdout handle.
func (f *FileSystem) Stdout() sys.Handle { return f.stdout }

// Stderr returns the reserved stderr handle.
func (f *FileSystem) Stderr() sys.Handle { return f.stderr }

func (f *FileSystem) descriptor(h sys.Handle) (*descriptor, sys.Result) {
	payload, res := f.registry.Lookup(h, sys.KindFile)
	if res != sys.Success {
		return nil, res
	}
	return payload.(*descriptor), sys.Success
}

// PreopenDirectory opens a directory the engine grants to guests at startup.
// The path must be absolute; the returned handle is read-only.
func (f *FileSystem) PreopenDirectory(path string) (sys.Handle, sys.Result) {
	h, res := f.openDirectoryPath(path)
	if res != sys.Success {
		return sys.InvalidHandle, res
	}
	d, _ := f.descriptor(h)
	d.preopen = true
	return h, sys.Success
}

func (f *FileSystem) openDirectoryPath(path string) (sys.Handle, sys.Result) {
	if !strings.HasPrefix(path, "/") {
		return sys.InvalidHandle, sys.InvalidPath
	}
	stat, err := f.backend.Stat(path, true)
	if err != nil {
		return sys.InvalidHandle, resultOf(err)
	}
	if stat.Kind != KindDirectory {
		return sys.InvalidHandle, sys.InvalidDirectory
	}
	return f.registry.Mint(sys.KindFile, &descriptor{
		path:      path,
		mode:      Read,
		directory: true,
	})
}

// Open opens the file at path. The path must be absolute.
func (f *FileSystem) Open(path string, mode AccessMode, open OpenFlags, status StatusFlags) (sys.Handle, sys.Result) {
	if !strings.HasPrefix(path, "/") {
		return sys.InvalidHandle, sys.InvalidPath
	}
	file, err := f.backend.Open(path, mode, open)
	if err != nil {
		return sys.InvalidHandle, resultOf(err)
	}
	return f.registry.Mint(sys.KindFile, &descriptor{
		file:   file,
		path:   path,
		mode:   mode,
		open:   open,
		status: status,
	})
}

// OpenAt opens a file or directory relative to the VFS root. The directory
// handle only scopes path authority; the backend resolves absolute paths, so
// a relative path is prefixed with the root separator before dispatch. When
// directory is set, the leading "." of the path is rewritten to the root
// separator and the subdirectory is opened instead.
func (f *FileSystem) OpenAt(dir sys.Handle, path string, directory bool, mode AccessMode, open OpenFlags, status StatusFlags, followLinks bool) (sys.Handle, sys.Result) {
	d, res := f.descriptor(dir)
	if res != sys.Success {
		return sys.InvalidHandle, res
	}
	if !d.directory {
		return sys.InvalidHandle, sys.InvalidDirectory
	}

	if directory {
		switch {
		case strings.HasPrefix(path, "."):
			path = "/" + path[1:]
		case !strings.HasPrefix(path, "/"):
			path = "/" + path
		}
		return f.openDirectoryPath(path)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return f.Open(path, mode, open, status)
}

// Close releases the descriptor. A stdio descriptor's underlying stream is
// left open.
func (f *FileSystem) Close(h sys.Handle) sys.Result {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return res
	}
	if res := f.registry.Release(h); res != sys.Success {
		return res
	}
	if d.stdio == stdioNone && d.file != nil {
		if err := d.file.Close(); err != nil {
			return resultOf(err)
		}
	}
	return sys.Success
}

// ReadVectored fills buffers in order from the descriptor's position and
// advances it by the number of bytes read. A short read at end of file is
// not an error.
func (f *FileSystem) ReadVectored(h sys.Handle, buffers [][]byte) (int, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return 0, res
	}
	if !d.mode.CanRead() {
		return 0, sys.PermissionDenied
	}

	d.m.Lock()
	defer d.m.Unlock()

	read, res := f.readAt(d, buffers, int64(d.position))
	d.position += uint64(read)
	return read, res
}

// WriteVectored writes buffers in order at the descriptor's position (or at
// end of file in append mode) and advances the position.
func (f *FileSystem) WriteVectored(h sys.Handle, buffers [][]byte) (int, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return 0, res
	}
	if !d.mode.CanWrite() {
		return 0, sys.PermissionDenied
	}

	d.m.Lock()
	defer d.m.Unlock()

	offset := int64(d.position)
	if d.status&Append != 0 {
		if d.stdio == stdioNone {
			stat, err := d.file.Stat()
			if err != nil {
				return 0, resultOf(err)
			}
			offset = int64(stat.Size)
		}
	}

	written, res := f.writeAt(d, buffers, offset)
	d.position = uint64(offset) + uint64(written)
	return written, res
}

// PositionedReadVectored reads at the given offset without touching the
// descriptor position.
func (f *FileSystem) PositionedReadVectored(h sys.Handle, buffers [][]byte, offset uint64) (int, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return 0, res
	}
	if !d.mode.CanRead() {
		return 0, sys.PermissionDenied
	}

	d.m.Lock()
	defer d.m.Unlock()
	return f.readAt(d, buffers, int64(offset))
}

// PositionedWriteVectored writes at the given offset without touching the
// descriptor position.
func (f *FileSystem) PositionedWriteVectored(h sys.Handle, buffers [][]byte, offset uint64) (int, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return 0, res
	}
	if !d.mode.CanWrite() {
		return 0, sys.PermissionDenied
	}

	d.m.Lock()
	defer d.m.Unlock()
	return f.writeAt(d, buffers, int64(offset))
}

func (f *FileSystem) readAt(d *descriptor, buffers [][]byte, offset int64) (int, sys.Result) {
	if d.file == nil {
		return 0, sys.InvalidFile
	}
	read := 0
	for _, b := range buffers {
		n, err := d.file.ReadAt(b, offset)
		read, offset = read+n, offset+int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return read, resultOf(err)
		}
		if n < len(b) {
			break
		}
	}
	return read, sys.Success
}

func (f *FileSystem) writeAt(d *descriptor, buffers [][]byte, offset int64) (int, sys.Result) {
	if d.file == nil {
		return 0, sys.InvalidFile
	}
	written := 0
	for _, b := range buffers {
		n, err := d.file.WriteAt(b, offset)
		written, offset = written+n, offset+int64(n)
		if err != nil {
			return written, resultOf(err)
		}
	}
	return written, sys.Success
}

// Seek moves the descriptor position and returns the new position. A
// position that would become negative fails with InvalidInput.
func (f *FileSystem) Seek(h sys.Handle, delta int64, whence Whence) (uint64, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return 0, res
	}
	if d.file == nil {
		return 0, sys.UnsupportedOperation
	}

	d.m.Lock()
	defer d.m.Unlock()

	var base int64
	switch whence {
	case Current:
		base = int64(d.position)
	case End:
		stat, err := d.file.Stat()
		if err != nil {
			return 0, resultOf(err)
		}
		base = int64(stat.Size)
	default:
		base = 0
	}

	position := base + delta
	if position < 0 {
		return 0, sys.InvalidInput
	}
	d.position = uint64(position)
	return d.position, sys.Success
}

// Truncate adjusts the backing storage to exactly size bytes.
func (f *FileSystem) Truncate(h sys.Handle, size uint64) sys.Result {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return res
	}
	if !d.mode.CanWrite() {
		return sys.PermissionDenied
	}
	if d.file == nil {
		return sys.UnsupportedOperation
	}
	return resultOf(d.file.Truncate(size))
}

// Allocate reserves backing storage for [offset, offset+length). It may be a
// no-op but never shrinks the file.
func (f *FileSystem) Allocate(h sys.Handle, offset, length uint64) sys.Result {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return res
	}
	if !d.mode.CanWrite() {
		return sys.PermissionDenied
	}
	if d.file == nil {
		return sys.UnsupportedOperation
	}
	return resultOf(d.file.Allocate(offset, length))
}

// SetTimes adjusts the descriptor's timestamps. Times are nanoseconds; the
// flag bits select which timestamps change and whether "now" is used.
func (f *FileSystem) SetTimes(h sys.Handle, accessTime, modificationTime uint64, flags TimeFlags) sys.Result {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return res
	}
	if d.path == "" {
		return sys.UnsupportedOperation
	}
	atime, mtime := timesOf(accessTime, modificationTime, flags)
	return resultOf(f.backend.SetTimes(d.path, atime, mtime, true))
}

// SetTimesFromPath is SetTimes addressed by path.
func (f *FileSystem) SetTimesFromPath(path string, accessTime, modificationTime uint64, flags TimeFlags, followLinks bool) sys.Result {
	if !strings.HasPrefix(path, "/") {
		return sys.InvalidPath
	}
	atime, mtime := timesOf(accessTime, modificationTime, flags)
	return resultOf(f.backend.SetTimes(path, atime, mtime, followLinks))
}

func timesOf(accessTime, modificationTime uint64, flags TimeFlags) (atime, mtime *time.Time) {
	switch {
	case flags&AccessTimeNow != 0:
		t := time.Now()
		atime = &t
	case flags&AccessTime != 0:
		t := time.Unix(0, int64(accessTime))
		atime = &t
	}
	switch {
	case flags&ModificationTimeNow != 0:
		t := time.Now()
		mtime = &t
	case flags&ModificationTime != 0:
		t := time.Unix(0, int64(modificationTime))
		mtime = &t
	}
	return atime, mtime
}

// Rename moves a file or directory.
func (f *FileSystem) Rename(oldPath, newPath string) sys.Result {
	if !strings.HasPrefix(oldPath, "/") || !strings.HasPrefix(newPath, "/") {
		return sys.InvalidPath
	}
	return resultOf(f.backend.Rename(oldPath, newPath))
}

// Link creates a hard link at newPath referring to oldPath.
func (f *FileSystem) Link(oldPath, newPath string) sys.Result {
	if !strings.HasPrefix(oldPath, "/") || !strings.HasPrefix(newPath, "/") {
		return sys.InvalidPath
	}
	return resultOf(f.backend.Link(oldPath, newPath))
}

// SymlinkAt creates a symbolic link at linkPath whose contents are target.
// The directory handle scopes authority only; linkPath is normalized to the
// root the same way OpenAt normalizes its path.
func (f *FileSystem) SymlinkAt(dir sys.Handle, target, linkPath string) sys.Result {
	d, res := f.descriptor(dir)
	if res != sys.Success {
		return res
	}
	if !d.directory {
		return sys.InvalidDirectory
	}
	if !strings.HasPrefix(linkPath, "/") {
		linkPath = "/" + linkPath
	}
	return resultOf(f.backend.Symlink(target, linkPath))
}

// CreateDirectory creates the directory at path.
func (f *FileSystem) CreateDirectory(path string) sys.Result {
	if !strings.HasPrefix(path, "/") {
		return sys.InvalidPath
	}
	return resultOf(f.backend.Mkdir(path))
}

// Remove removes the file or empty directory at path.
func (f *FileSystem) Remove(path string) sys.Result {
	if !strings.HasPrefix(path, "/") {
		return sys.InvalidPath
	}
	return resultOf(f.backend.Remove(path))
}

// GetStatistics returns a snapshot of the entity behind h.
func (f *FileSystem) GetStatistics(h sys.Handle) (FileStat, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return FileStat{}, res
	}
	if d.stdio != stdioNone {
		return FileStat{Kind: KindCharacterDevice, Links: 1}, sys.Success
	}
	if d.file != nil {
		stat, err := d.file.Stat()
		if err != nil {
			return FileStat{}, resultOf(err)
		}
		return stat, sys.Success
	}
	stat, err := f.backend.Stat(d.path, true)
	if err != nil {
		return FileStat{}, resultOf(err)
	}
	return stat, sys.Success
}

// GetStatisticsFromPath returns a snapshot of the entity at path.
func (f *FileSystem) GetStatisticsFromPath(path string, followLinks bool) (FileStat, sys.Result) {
	if !strings.HasPrefix(path, "/") {
		return FileStat{}, sys.InvalidPath
	}
	stat, err := f.backend.Stat(path, followLinks)
	if err != nil {
		return FileStat{}, resultOf(err)
	}
	return stat, sys.Success
}

// GetFlags returns the descriptor's status flags.
func (f *FileSystem) GetFlags(h sys.Handle) (StatusFlags, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return 0, res
	}
	d.m.Lock()
	defer d.m.Unlock()
	return d.status, sys.Success
}

// SetFlags replaces the descriptor's status flags.
func (f *FileSystem) SetFlags(h sys.Handle, status StatusFlags) sys.Result {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return res
	}
	d.m.Lock()
	defer d.m.Unlock()
	d.status = status
	return sys.Success
}

// GetAccessMode returns the access mode fixed at open time.
func (f *FileSystem) GetAccessMode(h sys.Handle) (AccessMode, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return 0, res
	}
	return d.mode, sys.Success
}

// Flush synchronizes the file to stable storage; when metadata is false only
// the data is synchronized.
func (f *FileSystem) Flush(h sys.Handle, metadata bool) sys.Result {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return res
	}
	if d.stdio != stdioNone || d.file == nil {
		return sys.Success
	}
	return resultOf(d.file.Sync(metadata))
}

// IsTerminal reports whether h refers to a terminal device.
func (f *FileSystem) IsTerminal(h sys.Handle) (bool, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return false, res
	}
	if d.stdio == stdioNone {
		return false, sys.Success
	}
	s, ok := d.file.(*streamFile)
	if !ok {
		return false, sys.Success
	}
	return s.isTerminal(), sys.Success
}

// IsStdin reports whether h is the reserved stdin handle.
func (f *FileSystem) IsStdin(h sys.Handle) bool { return h == f.stdin }

// IsStdout reports whether h is the reserved stdout handle.
func (f *FileSystem) IsStdout(h sys.Handle) bool { return h == f.stdout }

// IsStderr reports whether h is the reserved stderr handle.
func (f *FileSystem) IsStderr(h sys.Handle) bool { return h == f.stderr }

// ResolvePath copies path into buf as a NUL-terminated string, truncating to
// PathMax. Dot segments are not resolved.
func (f *FileSystem) ResolvePath(path string, buf []byte) sys.Result {
	if len(buf) == 0 {
		return sys.InvalidInput
	}
	n := len(path)
	if n > PathMax-1 {
		n = PathMax - 1
	}
	if n > len(buf)-1 {
		n = len(buf) - 1
	}
	copy(buf, path[:n])
	buf[n] = 0
	return sys.Success
}
