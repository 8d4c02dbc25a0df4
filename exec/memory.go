package exec

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the WASM linear-memory page size.
const PageSize = 65536

var ErrLimitExceeded = fmt.Errorf("memory limit exceeded")

// Memory is a guest linear memory. Host code addresses it with 32-bit guest
// pointers; every multi-byte access is little-endian, as the guest sees it.
type Memory struct {
	min, max uint32
	bytes    []byte
}

// NewMemory creates a linear memory with the given limits in pages.
func NewMemory(min, max uint32) Memory {
	return Memory{min: min, max: max, bytes: make([]byte, min*PageSize)}
}

// Limits returns the minimum and maximum size of the memory in pages.
func (m *Memory) Limits() (min, max uint32) {
	return m.min, m.max
}

// Size returns the current size of the memory in pages.
func (m *Memory) Size() uint32 {
	return uint32(len(m.bytes) / PageSize)
}

// Grow extends the memory by the given number of pages and returns the old
// size in pages.
func (m *Memory) Grow(pages uint32) (uint32, error) {
	current := m.Size()
	if next := current + pages; next > m.max || next > PageSize {
		return current, ErrLimitExceeded
	}
	bytes := make([]byte, int(current+pages)*PageSize)
	copy(bytes, m.bytes)
	m.bytes = bytes
	return current, nil
}

// Bytes returns the raw contents of the memory.
func (m *Memory) Bytes() []byte {
	return m.bytes
}

// Slice returns the guest range [ptr, ptr+length). Out-of-bounds ranges are
// clamped to the end of the memory.
func (m *Memory) Slice(ptr, length uint32) []byte {
	if uint64(ptr) >= uint64(len(m.bytes)) {
		return nil
	}
	if uint64(ptr)+uint64(length) > uint64(len(m.bytes)) {
		return m.bytes[ptr:]
	}
	return m.bytes[ptr : ptr+length]
}

// String reads a guest string of the given length.
func (m *Memory) String(ptr, length uint32) string {
	return string(m.Slice(ptr, length))
}

// CString reads a NUL-terminated guest string starting at ptr.
func (m *Memory) CString(ptr uint32) string {
	if uint64(ptr) >= uint64(len(m.bytes)) {
		return ""
	}
	bytes := m.bytes[ptr:]
	for i, b := range bytes {
		if b == 0 {
			return string(bytes[:i])
		}
	}
	return string(bytes)
}

// Byte returns the byte at ptr.
func (m *Memory) Byte(ptr uint32) byte {
	return m.bytes[ptr]
}

// PutByte stores v at ptr.
func (m *Memory) PutByte(v byte, ptr uint32) {
	m.bytes[ptr] = v
}

// Uint16 returns the uint16 at ptr.
func (m *Memory) Uint16(ptr uint32) uint16 {
	return binary.LittleEndian.Uint16(m.bytes[ptr:])
}

// PutUint16 stores v at ptr.
func (m *Memory) PutUint16(v uint16, ptr uint32) {
	binary.LittleEndian.PutUint16(m.bytes[ptr:], v)
}

// Uint32 returns the uint32 at ptr.
func (m *Memory) Uint32(ptr uint32) uint32 {
	return binary.LittleEndian.Uint32(m.bytes[ptr:])
}

// PutUint32 stores v at ptr.
func (m *Memory) PutUint32(v uint32, ptr uint32) {
	binary.LittleEndian.PutUint32(m.bytes[ptr:], v)
}

// Uint64 returns the uint64 at ptr.
func (m *Memory) Uint64(ptr uint32) uint64 {
	return binary.LittleEndian.Uint64(m.bytes[ptr:])
}

// PutUint64 stores v at ptr.
func (m *Memory) PutUint64(v uint64, ptr uint32) {
	binary.LittleEndian.PutUint64(m.bytes[ptr:], v)
}
