package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAccessors(t *testing.T) {
	m := NewMemory(1, 2)
	require.Equal(t, uint32(1), m.Size())

	m.PutUint32(0xDEADBEEF, 16)
	assert.Equal(t, uint32(0xDEADBEEF), m.Uint32(16))
	// Little-endian byte order.
	assert.Equal(t, byte(0xEF), m.Byte(16))

	m.PutUint64(0x1122334455667788, 32)
	assert.Equal(t, uint64(0x1122334455667788), m.Uint64(32))

	m.PutUint16(0xABCD, 48)
	assert.Equal(t, uint16(0xABCD), m.Uint16(48))
}

func TestMemoryGrow(t *testing.T) {
	m := NewMemory(1, 2)

	old, err := m.Grow(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), old)
	assert.Equal(t, uint32(2), m.Size())

	_, err = m.Grow(1)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestMemorySlice(t *testing.T) {
	m := NewMemory(1, 1)

	copy(m.Bytes()[8:], "payload")
	assert.Equal(t, "payload", string(m.Slice(8, 7)))
	assert.Equal(t, "payload", m.String(8, 7))

	// Out-of-bounds ranges clamp instead of panicking.
	assert.Nil(t, m.Slice(1<<20, 4))
	assert.Len(t, m.Slice(PageSize-2, 100), 2)
}

func TestMemoryCString(t *testing.T) {
	m := NewMemory(1, 1)

	copy(m.Bytes()[4:], "hello\x00world")
	assert.Equal(t, "hello", m.CString(4))
	assert.Equal(t, "", m.CString(1<<20))
}

func TestHostFunctionCall(t *testing.T) {
	fn := NewHostFunction(func(a uint32, b int32) int32 {
		return int32(a) + b
	})
	assert.Equal(t, Signature{Params: 2, Returns: 1}, fn.GetSignature())

	returns, err := fn.Call(40, uint64(uint32(2)))
	require.NoError(t, err)
	require.Len(t, returns, 1)
	assert.Equal(t, uint64(42), returns[0])

	// Negative results are sign-extended into the raw word.
	fn = NewHostFunction(func() int32 { return -1 })
	returns, err = fn.Call()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), returns[0])

	_, err = fn.Call(1)
	assert.Error(t, err)
}

func TestHostFunctionRejectsBadTypes(t *testing.T) {
	assert.Panics(t, func() { NewHostFunction(func(string) {}) })
	assert.Panics(t, func() { NewHostFunction(func() float64 { return 0 }) })
	assert.Panics(t, func() { NewHostFunction(42) })
}

func TestHostModule(t *testing.T) {
	m := NewHostModule("env").
		Export("answer", func() uint32 { return 42 })

	assert.Equal(t, "env", m.Name())

	fn, err := m.GetFunction("answer")
	require.NoError(t, err)
	returns, err := fn.Call()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), returns[0])

	_, err = m.GetFunction("missing")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	instance, err := m.Instantiate("env")
	require.NoError(t, err)
	assert.Equal(t, m, instance)
}

func TestMapResolver(t *testing.T) {
	m := NewHostModule("env")
	r := MapResolver{"env": m}

	def, err := r.ResolveModule("env")
	require.NoError(t, err)
	assert.Equal(t, ModuleDefinition(m), def)

	_, err = r.ResolveModule("other")
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestEnvironmentCustomData(t *testing.T) {
	memory := NewMemory(1, 1)
	env := NewEnvironment(&memory)

	_, ok := env.CustomData()
	assert.False(t, ok)

	env.SetCustomData("task-7")
	v, ok := env.CustomData()
	require.True(t, ok)
	assert.Equal(t, "task-7", v)
	assert.Equal(t, &memory, env.Memory())
}
