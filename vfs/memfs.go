package vfs

import (
	"encoding/binary"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
)

// A node is a single entity in the in-memory tree. Directories carry no data;
// their children are found by prefix scans over the ordered path map.
type node struct {
	kind   FileKind
	inode  uint64
	links  uint64
	data   []byte
	target string // symlink contents

	atime time.Time
	mtime time.Time
	ctime time.Time
}

// MemFS is an in-memory backend. Entries live in an ordered path map so
// directory listings come back in lexical order. The whole tree shares one
// lock; per-file data is small and operations are short.
type MemFS struct {
	mu        sync.Mutex
	nodes     *btree.Map[string, *node]
	device    uint64
	nextInode uint64
	capacity  uint64
	used      uint64
}

var _ Backend = (*MemFS)(nil)

// MemFSCapacity is the default data capacity of an in-memory tree.
const MemFSCapacity = 64 << 20

// NewMemFS creates an empty tree with a root directory and a device id
// minted from a random UUID.
func NewMemFS() *MemFS {
	id := uuid.New()
	m := &MemFS{
		nodes:     btree.NewMap[string, *node](0),
		device:    binary.BigEndian.Uint64(id[:8]),
		nextInode: 1,
		capacity:  MemFSCapacity,
	}
	now := time.Now()
	m.nodes.Set("/", &node{kind: KindDirectory, inode: m.mintInode(), links: 1, atime: now, mtime: now, ctime: now})
	return m
}

func (m *MemFS) mintInode() uint64 {
	inode := m.nextInode
	m.nextInode++
	return inode
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean(p)
}

// resolve walks symlinks at p. Only whole-path links are chased; a bounded
// hop count guards against cycles.
func (m *MemFS) resolve(p string, follow bool) (string, *node, error) {
	p = clean(p)
	for hops := 0; ; hops++ {
		n, ok := m.nodes.Get(p)
		if !ok {
			return p, nil, fs.ErrNotExist
		}
		if n.kind != KindSymbolicLink || !follow {
			return p, n, nil
		}
		if hops >= 8 {
			return p, nil, fs.ErrInvalid
		}
		p = clean(n.target)
	}
}

func (m *MemFS) parentOf(p string) (*node, error) {
	parent, ok := m.nodes.Get(path.Dir(p))
	if !ok {
		return nil, fs.ErrNotExist
	}
	if parent.kind != KindDirectory {
		return nil, errNotDirectory
	}
	return parent, nil
}

func (m *MemFS) Open(p string, mode AccessMode, flags OpenFlags) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, n, err := m.resolve(p, true)
	switch {
	case err == nil:
		if flags&CreateOnly != 0 {
			return nil, fs.ErrExist
		}
		if flags&Truncate != 0 && n.kind != KindFile {
			return nil, ErrUnsupported
		}
		if n.kind == KindDirectory {
			return nil, errIsDirectory
		}
		if flags&Truncate != 0 {
			m.used -= uint64(len(n.data))
			n.data = nil
			n.mtime = time.Now()
		}
	case flags&Create != 0:
		if _, perr := m.parentOf(p); perr != nil {
			return nil, perr
		}
		now := time.Now()
		n = &node{kind: KindFile, inode: m.mintInode(), links: 1, atime: now, mtime: now, ctime: now}
		m.nodes.Set(p, n)
	default:
		return nil, err
	}

	return &memFile{fs: m, node: n}, nil
}

func (m *MemFS) Stat(p string, followLinks bool) (FileStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, n, err := m.resolve(p, followLinks)
	if err != nil {
		return FileStat{}, err
	}
	return m.statOf(n), nil
}

func (m *MemFS) statOf(n *node) FileStat {
	return FileStat{
		Device:           m.device,
		Inode:            n.inode,
		Links:            n.links,
		Size:             uint64(len(n.data)),
		AccessTime:       uint64(n.atime.UnixNano()),
		ModificationTime: uint64(n.mtime.UnixNano()),
		ChangeTime:       uint64(n.ctime.UnixNano()),
		Kind:             n.kind,
	}
}

func (m *MemFS) ReadDir(p string) ([]DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, n, err := m.resolve(p, true)
	if err != nil {
		return nil, err
	}
	if n.kind != KindDirectory {
		return nil, errNotDirectory
	}

	prefix := p
	if prefix != "/" {
		prefix += "/"
	}

	var entries []DirEntry
	m.nodes.Ascend(prefix, func(key string, child *node) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		rest := key[len(prefix):]
		if rest == "" || strings.Contains(rest, "/") {
			return true
		}
		entries = append(entries, DirEntry{
			Name:  rest,
			Kind:  child.kind,
			Size:  uint64(len(child.data)),
			Inode: child.inode,
		})
		return true
	})
	return entries, nil
}

func (m *MemFS) Mkdir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if _, ok := m.nodes.Get(p); ok {
		return fs.ErrExist
	}
	if _, err := m.parentOf(p); err != nil {
		return err
	}
	now := time.Now()
	m.nodes.Set(p, &node{kind: KindDirectory, inode: m.mintInode(), links: 1, atime: now, mtime: now, ctime: now})
	return nil
}

func (m *MemFS) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if p == "/" {
		return fs.ErrInvalid
	}
	n, ok := m.nodes.Get(p)
	if !ok {
		return fs.ErrNotExist
	}
	if n.kind == KindDirectory {
		if m.hasChildren(p) {
			return errNotEmpty
		}
	}
	if n.links > 0 {
		n.links--
	}
	if n.links == 0 {
		m.used -= uint64(len(n.data))
	}
	m.nodes.Delete(p)
	return nil
}

func (m *MemFS) hasChildren(p string) bool {
	prefix := p + "/"
	found := false
	m.nodes.Ascend(prefix, func(key string, _ *node) bool {
		found = strings.HasPrefix(key, prefix)
		return false
	})
	return found
}

func (m *MemFS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPath, newPath = clean(oldPath), clean(newPath)
	n, ok := m.nodes.Get(oldPath)
	if !ok {
		return fs.ErrNotExist
	}
	if _, err := m.parentOf(newPath); err != nil {
		return err
	}

	if n.kind == KindDirectory {
		// Move the whole subtree.
		prefix := oldPath + "/"
		type move struct {
			from, to string
			n        *node
		}
		var moves []move
		m.nodes.Ascend(prefix, func(key string, child *node) bool {
			if !strings.HasPrefix(key, prefix) {
				return false
			}
			moves = append(moves, move{from: key, to: newPath + "/" + key[len(prefix):], n: child})
			return true
		})
		for _, mv := range moves {
			m.nodes.Delete(mv.from)
			m.nodes.Set(mv.to, mv.n)
		}
	}

	m.nodes.Delete(oldPath)
	m.nodes.Set(newPath, n)
	n.ctime = time.Now()
	return nil
}

func (m *MemFS) Link(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPath, newPath = clean(oldPath), clean(newPath)
	n, ok := m.nodes.Get(oldPath)
	if !ok {
		return fs.ErrNotExist
	}
	if n.kind == KindDirectory {
		return errIsDirectory
	}
	if _, ok := m.nodes.Get(newPath); ok {
		return fs.ErrExist
	}
	if _, err := m.parentOf(newPath); err != nil {
		return err
	}
	n.links++
	n.ctime = time.Now()
	m.nodes.Set(newPath, n)
	return nil
}

func (m *MemFS) Symlink(target, linkPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	linkPath = clean(linkPath)
	if _, ok := m.nodes.Get(linkPath); ok {
		return fs.ErrExist
	}
	if _, err := m.parentOf(linkPath); err != nil {
		return err
	}
	now := time.Now()
	m.nodes.Set(linkPath, &node{
		kind:   KindSymbolicLink,
		inode:  m.mintInode(),
		links:  1,
		target: target,
		atime:  now, mtime: now, ctime: now,
	})
	return nil
}

func (m *MemFS) SetTimes(p string, accessTime, modificationTime *time.Time, followLinks bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, n, err := m.resolve(p, followLinks)
	if err != nil {
		return err
	}
	if accessTime != nil {
		n.atime = *accessTime
	}
	if modificationTime != nil {
		n.mtime = *modificationTime
	}
	n.ctime = time.Now()
	return nil
}

// A memFile is an open handle on a tree node. The facade owns the offset.
type memFile struct {
	fs   *MemFS
	node *node
}

func (f *memFile) ReadAt(p []byte, offset int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	data := f.node.data
	if offset >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[offset:])
	f.node.atime = time.Now()
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) WriteAt(p []byte, offset int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	end := offset + int64(len(p))
	if end > int64(len(f.node.data)) {
		grow := uint64(end) - uint64(len(f.node.data))
		if f.fs.used+grow > f.fs.capacity {
			return 0, errNoSpace
		}
		data := make([]byte, end)
		copy(data, f.node.data)
		f.node.data = data
		f.fs.used += grow
	}
	n := copy(f.node.data[offset:], p)
	f.node.mtime = time.Now()
	return n, nil
}

func (f *memFile) Truncate(size uint64) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	current := uint64(len(f.node.data))
	switch {
	case size < current:
		f.fs.used -= current - size
		f.node.data = f.node.data[:size]
	case size > current:
		if f.fs.used+size-current > f.fs.capacity {
			return errNoSpace
		}
		data := make([]byte, size)
		copy(data, f.node.data)
		f.node.data = data
		f.fs.used += size - current
	}
	f.node.mtime = time.Now()
	return nil
}

func (f *memFile) Allocate(offset, length uint64) error {
	end := offset + length
	f.fs.mu.Lock()
	current := uint64(len(f.node.data))
	f.fs.mu.Unlock()
	if end <= current {
		return nil
	}
	return f.Truncate(end)
}

func (f *memFile) Stat() (FileStat, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return f.fs.statOf(f.node), nil
}

func (f *memFile) Sync(bool) error { return nil }

func (f *memFile) Close() error { return nil }
