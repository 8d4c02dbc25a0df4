package vfs

import (
	"github.com/pgavlin/xos/sys"
)

// A dirStream iterates over the entries of an open directory descriptor. The
// stream aliases the descriptor through a parent pointer; the two occupy
// disjoint registry slots, so closing the stream releases only the stream.
// Streams are not safe for concurrent use; callers serialize.
type dirStream struct {
	parent  sys.Handle
	path    string
	entries []DirEntry
	cursor  int
	loaded  bool
}

// OpenDirectory opens an iteration stream over the directory descriptor h.
// The stream starts at the first entry.
func (f *FileSystem) OpenDirectory(h sys.Handle) (sys.Handle, sys.Result) {
	d, res := f.descriptor(h)
	if res != sys.Success {
		return sys.InvalidHandle, res
	}
	if !d.directory {
		return sys.InvalidHandle, sys.InvalidDirectory
	}
	return f.registry.Mint(sys.KindDir, &dirStream{parent: h, path: d.path})
}

func (f *FileSystem) stream(h sys.Handle) (*dirStream, sys.Result) {
	payload, res := f.registry.Lookup(h, sys.KindDir)
	if res != sys.Success {
		return nil, res
	}
	return payload.(*dirStream), sys.Success
}

// ReadDirectory returns the entry under the cursor and advances it. The end
// of the stream is reported as a success with an empty name.
func (f *FileSystem) ReadDirectory(h sys.Handle) (DirEntry, sys.Result) {
	s, res := f.stream(h)
	if res != sys.Success {
		return DirEntry{}, res
	}
	if !s.loaded {
		entries, err := f.backend.ReadDir(s.path)
		if err != nil {
			return DirEntry{}, resultOf(err)
		}
		s.entries, s.loaded = entries, true
	}
	if s.cursor >= len(s.entries) {
		return DirEntry{}, sys.Success
	}
	entry := s.entries[s.cursor]
	s.cursor++
	return entry, sys.Success
}

// RewindDirectory resets the stream to the first entry. The entry snapshot
// is dropped so the next read observes the directory's current contents.
func (f *FileSystem) RewindDirectory(h sys.Handle) sys.Result {
	s, res := f.stream(h)
	if res != sys.Success {
		return res
	}
	s.cursor, s.entries, s.loaded = 0, nil, false
	return sys.Success
}

// SetDirectoryPosition moves the stream cursor to the given cookie, as
// previously implied by the iteration order.
func (f *FileSystem) SetDirectoryPosition(h sys.Handle, cookie uint64) sys.Result {
	s, res := f.stream(h)
	if res != sys.Success {
		return res
	}
	s.cursor = int(cookie)
	return sys.Success
}

// CloseDirectory releases the stream slot. The parent descriptor stays open.
func (f *FileSystem) CloseDirectory(h sys.Handle) sys.Result {
	if _, res := f.stream(h); res != sys.Success {
		return res
	}
	return f.registry.Release(h)
}
