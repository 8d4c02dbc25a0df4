package wasi

import (
	"strings"
	"sync"

	"github.com/pgavlin/xos/exec"
	"github.com/pgavlin/xos/sys"
)

// ModuleName is the canonical import module name for the guest ABI surface.
const ModuleName = "wasi_snapshot_preview1"

// TrapExit is panicked by proc_exit and recovered at the engine boundary.
type TrapExit int

// Rights bits consulted when deriving an access mode from a path_open
// request.
const (
	RightFdRead  uint64 = 1 << 1
	RightFdWrite uint64 = 1 << 6
)

const fdstatSize = 24

// A Preopen grants a directory to the guest at startup.
type Preopen struct {
	// Path is the name the guest sees.
	Path string
	// FSPath is the directory inside the virtual file system.
	FSPath string
}

type fdEntry struct {
	handle  sys.Handle
	preopen int // 1-based preopen index, 0 for ordinary descriptors
	stream  sys.Handle
}

// A Module is the guest-facing ABI surface bound to one instance. Guest file
// descriptors are small integers local to the instance; each maps to a host
// handle. Host symbol lookup accepts both ABI spellings during the
// transition window, so "Xila_"-prefixed imports resolve like their
// lowercase forms.
type Module struct {
	name   string
	env    *exec.Environment
	bridge *Bridge

	m        sync.Mutex
	fds      map[Fd]*fdEntry
	next     Fd
	preopens []Preopen
}

// NewModule binds the bridge to a guest environment. The preopen directories
// are opened immediately and occupy descriptors 3 and up; 0-2 are stdio.
func NewModule(name string, env *exec.Environment, bridge *Bridge, preopens []Preopen) (*Module, error) {
	m := &Module{
		name:   name,
		env:    env,
		bridge: bridge,
		fds:    map[Fd]*fdEntry{},
		next:   3,
	}

	fs := bridge.FS()
	m.fds[0] = &fdEntry{handle: fs.Stdin(), stream: sys.InvalidHandle}
	m.fds[1] = &fdEntry{handle: fs.Stdout(), stream: sys.InvalidHandle}
	m.fds[2] = &fdEntry{handle: fs.Stderr(), stream: sys.InvalidHandle}

	for i, p := range preopens {
		h, errno := bridge.OpenPreopenDirectory(p.FSPath)
		if errno != ErrnoSuccess {
			return nil, ResultOf(errno)
		}
		fd := m.next
		m.next++
		m.fds[fd] = &fdEntry{handle: h, preopen: i + 1, stream: sys.InvalidHandle}
		m.preopens = append(m.preopens, p)
	}
	return m, nil
}

func (m *Module) Name() string {
	return m.name
}

// Instantiate lets the module double as its own definition.
func (m *Module) Instantiate(string) (exec.Module, error) {
	return m, nil
}

func (m *Module) entry(fd Fd) (*fdEntry, Errno) {
	m.m.Lock()
	defer m.m.Unlock()
	e, ok := m.fds[fd]
	if !ok {
		return nil, ErrnoBadf
	}
	return e, ErrnoSuccess
}

func (m *Module) allocate(handle sys.Handle) Fd {
	m.m.Lock()
	defer m.m.Unlock()
	fd := m.next
	m.next++
	m.fds[fd] = &fdEntry{handle: handle, stream: sys.InvalidHandle}
	return fd
}

func (m *Module) release(fd Fd) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.fds, fd)
}

// buffers builds the transient buffer list for a vectored I/O from the
// guest iovec array.
func (m *Module) buffers(iovs uint32, count Size) [][]byte {
	mem := m.env.Memory()
	buffers := make([][]byte, count)
	for i := range buffers {
		base := iovs + uint32(i)*IovecSize
		buffers[i] = mem.Slice(mem.Uint32(base), mem.Uint32(base+4))
	}
	return buffers
}

func (m *Module) path(ptr uint32, length Size) string {
	return m.env.Memory().String(ptr, length)
}

// GetFunction resolves a guest import. Both ABI spellings route to the same
// backing implementation.
func (m *Module) GetFunction(name string) (exec.Function, error) {
	if strings.HasPrefix(name, "Xila_") {
		name = "xila_" + name[len("Xila_"):]
	}

	switch name {
	case "clock_res_get":
		return exec.NewHostFunction(m.clockResGet), nil
	case "clock_time_get":
		return exec.NewHostFunction(m.clockTimeGet), nil
	case "fd_advise":
		return exec.NewHostFunction(m.fdAdvise), nil
	case "fd_allocate":
		return exec.NewHostFunction(m.fdAllocate), nil
	case "fd_close":
		return exec.NewHostFunction(m.fdClose), nil
	case "fd_datasync":
		return exec.NewHostFunction(m.fdDatasync), nil
	case "fd_sync":
		return exec.NewHostFunction(m.fdSync), nil
	case "fd_fdstat_get":
		return exec.NewHostFunction(m.fdFdstatGet), nil
	case "fd_fdstat_set_flags":
		return exec.NewHostFunction(m.fdFdstatSetFlags), nil
	case "fd_filestat_get":
		return exec.NewHostFunction(m.fdFilestatGet), nil
	case "fd_filestat_set_size":
		return exec.NewHostFunction(m.fdFilestatSetSize), nil
	case "fd_filestat_set_times":
		return exec.NewHostFunction(m.fdFilestatSetTimes), nil
	case "fd_pread":
		return exec.NewHostFunction(m.fdPread), nil
	case "fd_pwrite":
		return exec.NewHostFunction(m.fdPwrite), nil
	case "fd_read":
		return exec.NewHostFunction(m.fdRead), nil
	case "fd_write":
		return exec.NewHostFunction(m.fdWrite), nil
	case "fd_readdir":
		return exec.NewHostFunction(m.fdReaddir), nil
	case "fd_seek":
		return exec.NewHostFunction(m.fdSeek), nil
	case "fd_tell":
		return exec.NewHostFunction(m.fdTell), nil
	case "fd_prestat_get":
		return exec.NewHostFunction(m.fdPrestatGet), nil
	case "fd_prestat_dir_name":
		return exec.NewHostFunction(m.fdPrestatDirName), nil
	case "path_create_directory":
		return exec.NewHostFunction(m.pathCreateDirectory), nil
	case "path_filestat_get":
		return exec.NewHostFunction(m.pathFilestatGet), nil
	case "path_filestat_set_times":
		return exec.NewHostFunction(m.pathFilestatSetTimes), nil
	case "path_link":
		return exec.NewHostFunction(m.pathLink), nil
	case "path_open":
		return exec.NewHostFunction(m.pathOpen), nil
	case "path_readlink":
		return exec.NewHostFunction(m.pathReadlink), nil
	case "path_remove_directory":
		return exec.NewHostFunction(m.pathRemoveDirectory), nil
	case "path_rename":
		return exec.NewHostFunction(m.pathRename), nil
	case "path_symlink":
		return exec.NewHostFunction(m.pathSymlink), nil
	case "path_unlink_file":
		return exec.NewHostFunction(m.pathUnlinkFile), nil
	case "proc_exit":
		return exec.NewHostFunction(m.procExit), nil
	case "sched_yield":
		return exec.NewHostFunction(m.schedYield), nil
	case "poll_oneoff":
		return exec.NewHostFunction(m.pollOneoff), nil
	case "sock_recv":
		return exec.NewHostFunction(m.sockRecv), nil
	case "sock_send":
		return exec.NewHostFunction(m.sockSend), nil
	case "sock_shutdown":
		return exec.NewHostFunction(m.sockShutdown), nil
	default:
		return nil, exec.ErrUnknownFunction
	}
}

func (m *Module) clockResGet(id Clockid, presult uint32) Errno {
	resolution, errno := m.bridge.ClockResGet(id)
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint64(resolution, presult)
	return ErrnoSuccess
}

func (m *Module) clockTimeGet(id Clockid, precision Timestamp, presult uint32) Errno {
	now, errno := m.bridge.ClockTimeGet(id, precision)
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint64(now, presult)
	return ErrnoSuccess
}

func (m *Module) fdAdvise(fd Fd, offset, length Filesize, advice uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Fadvise(e.handle, offset, length, uint8(advice))
}

func (m *Module) fdAllocate(fd Fd, offset, length Filesize) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Fallocate(e.handle, offset, length)
}

func (m *Module) fdClose(fd Fd) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if e.stream != sys.InvalidHandle {
		m.bridge.Closedir(e.stream)
	}
	errno = m.bridge.Close(e.handle, fd <= 2)
	if errno != ErrnoSuccess {
		return errno
	}
	m.release(fd)
	return ErrnoSuccess
}

func (m *Module) fdDatasync(fd Fd) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Fdatasync(e.handle)
}

func (m *Module) fdSync(fd Fd) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Fsync(e.handle)
}

func (m *Module) fdFdstatGet(fd Fd, pstat uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	stat, errno := m.bridge.Fstat(e.handle)
	if errno != ErrnoSuccess {
		return errno
	}
	flags, errno := m.bridge.FdflagsGet(e.handle)
	if errno != ErrnoSuccess {
		return errno
	}

	mem := m.env.Memory()
	mem.PutByte(stat.Filetype, pstat)
	mem.PutByte(0, pstat+1)
	mem.PutUint16(flags, pstat+2)
	mem.PutUint32(0, pstat+4)
	mem.PutUint64(^uint64(0), pstat+8)
	mem.PutUint64(^uint64(0), pstat+16)
	return ErrnoSuccess
}

func (m *Module) fdFdstatSetFlags(fd Fd, flags Fdflags) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.FdflagsSet(e.handle, flags)
}

func (m *Module) fdFilestatGet(fd Fd, pstat uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	stat, errno := m.bridge.Fstat(e.handle)
	if errno != ErrnoSuccess {
		return errno
	}
	stat.Store(m.env.Memory(), pstat)
	return ErrnoSuccess
}

func (m *Module) fdFilestatSetSize(fd Fd, size Filesize) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Ftruncate(e.handle, size)
}

func (m *Module) fdFilestatSetTimes(fd Fd, atim, mtim Timestamp, flags Fstflags) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Futimens(e.handle, atim, mtim, flags)
}

func (m *Module) fdPread(fd Fd, iovs uint32, iovsLen Size, offset Filesize, pnread uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	n, errno := m.bridge.Preadv(e.handle, m.buffers(iovs, iovsLen), offset)
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint32(uint32(n), pnread)
	return ErrnoSuccess
}

func (m *Module) fdPwrite(fd Fd, iovs uint32, iovsLen Size, offset Filesize, pnwritten uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	n, errno := m.bridge.Pwritev(e.handle, m.buffers(iovs, iovsLen), offset)
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint32(uint32(n), pnwritten)
	return ErrnoSuccess
}

func (m *Module) fdRead(fd Fd, iovs uint32, iovsLen Size, pnread uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	n, errno := m.bridge.Readv(e.handle, m.buffers(iovs, iovsLen))
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint32(uint32(n), pnread)
	return ErrnoSuccess
}

func (m *Module) fdWrite(fd Fd, iovs uint32, iovsLen Size, pnwritten uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	n, errno := m.bridge.Writev(e.handle, m.buffers(iovs, iovsLen))
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint32(uint32(n), pnwritten)
	return ErrnoSuccess
}

// fdReaddir packs dirent records into the guest buffer, truncating the last
// entry when it does not fit so the caller can grow its buffer and resume
// from the returned cookie.
func (m *Module) fdReaddir(fd Fd, buf uint32, bufLen Size, cookie Dircookie, pused uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if e.stream == sys.InvalidHandle {
		stream, errno := m.bridge.Fdopendir(e.handle)
		if errno != ErrnoSuccess {
			return errno
		}
		e.stream = stream
	}
	if errno := m.bridge.Seekdir(e.stream, cookie); errno != ErrnoSuccess {
		return errno
	}

	mem := m.env.Memory()
	dest := mem.Slice(buf, bufLen)
	used := Size(0)
	scratch := exec.NewMemory(1, 1)

	for {
		dirent, name, errno := m.bridge.Readdir(e.stream)
		if errno != ErrnoSuccess {
			return errno
		}
		if name == "" {
			break
		}
		cookie++
		dirent.Next = cookie

		record := make([]byte, DirentSize+len(name))
		dirent.Store(&scratch, 0)
		copy(record, scratch.Bytes()[:DirentSize])
		copy(record[DirentSize:], name)

		n := copy(dest[used:], record)
		used += Size(n)
		if n < len(record) {
			break
		}
	}

	mem.PutUint32(used, pused)
	return ErrnoSuccess
}

func (m *Module) fdSeek(fd Fd, offset Filedelta, whence uint32, pnewoffset uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	position, errno := m.bridge.Lseek(e.handle, offset, Whence(whence))
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint64(position, pnewoffset)
	return ErrnoSuccess
}

func (m *Module) fdTell(fd Fd, poffset uint32) Errno {
	return m.fdSeek(fd, 0, uint32(WhenceCur), poffset)
}

func (m *Module) fdPrestatGet(fd Fd, pprestat uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if e.preopen == 0 {
		return ErrnoBadf
	}
	mem := m.env.Memory()
	mem.PutUint32(0, pprestat) // preopentype::dir
	mem.PutUint32(uint32(len(m.preopens[e.preopen-1].Path)), pprestat+4)
	return ErrnoSuccess
}

func (m *Module) fdPrestatDirName(fd Fd, ppath uint32, pathLen Size) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if e.preopen == 0 {
		return ErrnoBadf
	}
	copy(m.env.Memory().Slice(ppath, pathLen), m.preopens[e.preopen-1].Path)
	return ErrnoSuccess
}

func (m *Module) pathCreateDirectory(fd Fd, ppath uint32, pathLen Size) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Mkdirat(e.handle, m.path(ppath, pathLen))
}

func (m *Module) pathFilestatGet(fd Fd, lookup Lookupflags, ppath uint32, pathLen Size, pstat uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	stat, errno := m.bridge.Fstatat(e.handle, m.path(ppath, pathLen), lookup)
	if errno != ErrnoSuccess {
		return errno
	}
	stat.Store(m.env.Memory(), pstat)
	return ErrnoSuccess
}

func (m *Module) pathFilestatSetTimes(fd Fd, lookup Lookupflags, ppath uint32, pathLen Size, atim, mtim Timestamp, flags Fstflags) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Utimensat(e.handle, m.path(ppath, pathLen), atim, mtim, flags, lookup)
}

func (m *Module) pathLink(oldFd Fd, lookup Lookupflags, poldPath uint32, oldPathLen Size, newFd Fd, pnewPath uint32, newPathLen Size) Errno {
	oldEntry, errno := m.entry(oldFd)
	if errno != ErrnoSuccess {
		return errno
	}
	newEntry, errno := m.entry(newFd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Linkat(oldEntry.handle, m.path(poldPath, oldPathLen), newEntry.handle, m.path(pnewPath, newPathLen), lookup)
}

func (m *Module) pathOpen(fd Fd, dirflags Lookupflags, ppath uint32, pathLen Size, oflags Oflags, rightsBase, rightsInheriting uint64, fdflags Fdflags, pfd uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}

	mode := AccessModeReadOnly
	switch {
	case rightsBase&RightFdRead != 0 && rightsBase&RightFdWrite != 0:
		mode = AccessModeReadWrite
	case rightsBase&RightFdWrite != 0:
		mode = AccessModeWriteOnly
	}

	handle, errno := m.bridge.OpenAt(e.handle, m.path(ppath, pathLen), oflags, fdflags, dirflags, mode)
	if errno != ErrnoSuccess {
		return errno
	}
	m.env.Memory().PutUint32(uint32(m.allocate(handle)), pfd)
	return ErrnoSuccess
}

func (m *Module) pathReadlink(fd Fd, ppath uint32, pathLen Size, buf uint32, bufLen Size, pused uint32) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	_, errno = m.bridge.Readlinkat(e.handle, m.path(ppath, pathLen), m.env.Memory().Slice(buf, bufLen))
	return errno
}

func (m *Module) pathRemoveDirectory(fd Fd, ppath uint32, pathLen Size) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Unlinkat(e.handle, m.path(ppath, pathLen), true)
}

func (m *Module) pathRename(fd Fd, poldPath uint32, oldPathLen Size, newFd Fd, pnewPath uint32, newPathLen Size) Errno {
	oldEntry, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	newEntry, errno := m.entry(newFd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Renameat(oldEntry.handle, m.path(poldPath, oldPathLen), newEntry.handle, m.path(pnewPath, newPathLen))
}

func (m *Module) pathSymlink(poldPath uint32, oldPathLen Size, fd Fd, pnewPath uint32, newPathLen Size) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Symlinkat(m.path(poldPath, oldPathLen), e.handle, m.path(pnewPath, newPathLen))
}

func (m *Module) pathUnlinkFile(fd Fd, ppath uint32, pathLen Size) Errno {
	e, errno := m.entry(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	return m.bridge.Unlinkat(e.handle, m.path(ppath, pathLen), false)
}

func (m *Module) procExit(code Exitcode) {
	panic(TrapExit(int(int32(code))))
}

func (m *Module) schedYield() Errno {
	return ErrnoSuccess
}

func (m *Module) pollOneoff(pin, pout uint32, nsubscriptions Size, presult uint32) Errno {
	return ErrnoNotsup
}

func (m *Module) sockRecv(fd Fd, riData uint32, riDataLen Size, riFlags uint32, pnread, pflags uint32) Errno {
	return ErrnoNotsup
}

func (m *Module) sockSend(fd Fd, siData uint32, siDataLen Size, siFlags uint32, pnwritten uint32) Errno {
	return ErrnoNotsup
}

func (m *Module) sockShutdown(fd Fd, how uint32) Errno {
	return ErrnoNotsup
}
