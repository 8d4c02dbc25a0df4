package sys

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryMintLookupRelease(t *testing.T) {
	r := NewRegistry(16)

	h, res := r.Mint(KindFile, "payload")
	require.Equal(t, Success, res)
	require.NotEqual(t, InvalidHandle, h)

	p, res := r.Lookup(h, KindFile)
	require.Equal(t, Success, res)
	assert.Equal(t, "payload", p)

	// Kind mismatch is indistinguishable from a dead handle.
	_, res = r.Lookup(h, KindMutex)
	assert.Equal(t, InvalidIdentifier, res)

	require.Equal(t, Success, r.Release(h))

	_, res = r.Lookup(h, KindFile)
	assert.Equal(t, InvalidIdentifier, res)
	assert.Equal(t, InvalidIdentifier, r.Release(h))
}

func TestRegistryInvalidSentinel(t *testing.T) {
	r := NewRegistry(4)

	_, res := r.Lookup(InvalidHandle, KindFile)
	assert.Equal(t, InvalidIdentifier, res)
	assert.Equal(t, InvalidIdentifier, r.Release(InvalidHandle))
}

func TestRegistryGenerationDetectsReuse(t *testing.T) {
	r := NewRegistry(1)

	h1, res := r.Mint(KindFile, 1)
	require.Equal(t, Success, res)
	require.Equal(t, Success, r.Release(h1))

	// The sole slot is reused; the stale handle must keep failing.
	h2, res := r.Mint(KindFile, 2)
	require.Equal(t, Success, res)
	require.NotEqual(t, h1, h2)

	_, res = r.Lookup(h1, KindFile)
	assert.Equal(t, InvalidIdentifier, res)

	p, res := r.Lookup(h2, KindFile)
	require.Equal(t, Success, res)
	assert.Equal(t, 2, p)
}

func TestRegistryExhaustion(t *testing.T) {
	r := NewRegistry(2)

	_, res := r.Mint(KindFile, nil)
	require.Equal(t, Success, res)
	h, res := r.Mint(KindDir, nil)
	require.Equal(t, Success, res)

	_, res = r.Mint(KindFile, nil)
	assert.Equal(t, TooManyOpenFiles, res)

	require.Equal(t, Success, r.Release(h))
	_, res = r.Mint(KindFile, nil)
	assert.Equal(t, Success, res)
}

func TestRegistryConcurrentMintRelease(t *testing.T) {
	r := NewRegistry(1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h, res := r.Mint(KindThread, j)
				require.Equal(t, Success, res)

				_, res = r.Lookup(h, KindThread)
				require.Equal(t, Success, res)

				require.Equal(t, Success, r.Release(h))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint(0), r.Len())
}

func TestResultStrings(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "too many open files", TooManyOpenFiles.String())
	assert.Equal(t, "unknown", Result(1000).String())
	assert.True(t, Success.OK())
	assert.False(t, NotFound.OK())
}
