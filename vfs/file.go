package vfs

import (
	"io"
	"os"
)

// A streamFile adapts raw stdio streams to the backend File contract.
// Streams have no position, so the offset of every call is ignored.
type streamFile struct {
	r io.Reader
	w io.Writer
}

func newStreamFile(r io.Reader, w io.Writer) *streamFile {
	return &streamFile{r: r, w: w}
}

func (s *streamFile) ReadAt(p []byte, _ int64) (int, error) {
	if s.r == nil {
		return 0, ErrUnsupported
	}
	return s.r.Read(p)
}

func (s *streamFile) WriteAt(p []byte, _ int64) (int, error) {
	if s.w == nil {
		return 0, ErrUnsupported
	}
	return s.w.Write(p)
}

func (s *streamFile) Truncate(uint64) error { return ErrUnsupported }

func (s *streamFile) Allocate(uint64, uint64) error { return ErrUnsupported }

func (s *streamFile) Stat() (FileStat, error) {
	return FileStat{Kind: KindCharacterDevice, Links: 1}, nil
}

func (s *streamFile) Sync(bool) error { return nil }

// Close never closes the underlying stream; the facade owns stdio lifetime.
func (s *streamFile) Close() error { return nil }

func (s *streamFile) isTerminal() bool {
	if f, ok := s.r.(*os.File); ok {
		return isTerminal(int(f.Fd()))
	}
	if f, ok := s.w.(*os.File); ok {
		return isTerminal(int(f.Fd()))
	}
	return false
}
