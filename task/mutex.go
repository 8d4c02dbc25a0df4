package task

import (
	"sync"

	"github.com/pgavlin/xos/sys"
)

// A mutex is the engine's lock primitive. The token channel holds exactly
// one value while the mutex is free; recursion is tracked by owner and
// depth under the state lock.
type mutex struct {
	m         sync.Mutex
	recursive bool
	owner     sys.Handle
	depth     uint32
	waiters   uint32
	token     chan struct{}
}

func newMutex(recursive bool) *mutex {
	m := &mutex{recursive: recursive, token: make(chan struct{}, 1)}
	m.token <- struct{}{}
	return m
}

// MutexInit creates a plain mutex.
func (e *Engine) MutexInit() (sys.Handle, sys.Result) {
	return e.registry.Mint(sys.KindMutex, newMutex(false))
}

// RecursiveMutexInit creates a mutex the owning thread may re-lock.
func (e *Engine) RecursiveMutexInit() (sys.Handle, sys.Result) {
	return e.registry.Mint(sys.KindMutex, newMutex(true))
}

func (e *Engine) mutex(h sys.Handle) (*mutex, sys.Result) {
	payload, res := e.registry.Lookup(h, sys.KindMutex)
	if res != sys.Success {
		return nil, res
	}
	return payload.(*mutex), sys.Success
}

// MutexLock blocks until the calling thread owns the mutex. Re-locking a
// recursive mutex increments its depth; re-locking a plain mutex fails with
// ResourceBusy instead of deadlocking the host task.
func (e *Engine) MutexLock(h sys.Handle) sys.Result {
	mx, res := e.mutex(h)
	if res != sys.Success {
		return res
	}
	self := e.Current()

	mx.m.Lock()
	if mx.owner == self && mx.depth > 0 {
		if !mx.recursive {
			mx.m.Unlock()
			return sys.ResourceBusy
		}
		mx.depth++
		mx.m.Unlock()
		return sys.Success
	}
	mx.waiters++
	mx.m.Unlock()

	<-mx.token

	mx.m.Lock()
	mx.owner, mx.depth = self, 1
	mx.waiters--
	mx.m.Unlock()
	return sys.Success
}

// MutexUnlock releases one level of ownership. Unlocking a mutex the caller
// does not own is an error.
func (e *Engine) MutexUnlock(h sys.Handle) sys.Result {
	mx, res := e.mutex(h)
	if res != sys.Success {
		return res
	}
	self := e.Current()

	mx.m.Lock()
	defer mx.m.Unlock()

	if mx.depth == 0 || mx.owner != self {
		return sys.InvalidInput
	}
	mx.depth--
	if mx.depth == 0 {
		mx.owner = sys.InvalidHandle
		mx.token <- struct{}{}
	}
	return sys.Success
}

// MutexDestroy releases the mutex handle. A locked or contended mutex is
// busy and survives the call.
func (e *Engine) MutexDestroy(h sys.Handle) sys.Result {
	mx, res := e.mutex(h)
	if res != sys.Success {
		return res
	}

	mx.m.Lock()
	busy := mx.depth > 0 || mx.waiters > 0
	mx.m.Unlock()
	if busy {
		return sys.ResourceBusy
	}
	return e.registry.Release(h)
}
