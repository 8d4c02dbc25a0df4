package task

import (
	"sync"

	"github.com/pgavlin/xos/sys"
)

// SemCreate requests creation of a semaphore that does not exist yet.
const SemCreate = 1 << 0

// SemExclusive fails the open when the name already exists.
const SemExclusive = 1 << 1

// A semaphore is a named counter shared by every handle opened on its name.
// Unlinking removes the name but the state lives until the last close.
type semaphore struct {
	m sync.Mutex

	name     string
	value    int32
	waiters  []chan struct{}
	refs     int
	unlinked bool
}

// semRef is the per-handle payload; independent opens of the same name share
// the semaphore behind it.
type semRef struct {
	sem *semaphore
}

// SemaphoreOpen opens or creates the named semaphore. With SemCreate the
// initial value seeds the counter of a fresh semaphore; an existing name
// keeps its state.
func (e *Engine) SemaphoreOpen(name string, flags int, _ uint32, value uint32) (sys.Handle, sys.Result) {
	if name == "" {
		return sys.InvalidHandle, sys.InvalidInput
	}

	e.m.Lock()
	s, ok := e.sems[name]
	switch {
	case ok && flags&SemCreate != 0 && flags&SemExclusive != 0:
		e.m.Unlock()
		return sys.InvalidHandle, sys.AlreadyExists
	case !ok && flags&SemCreate == 0:
		e.m.Unlock()
		return sys.InvalidHandle, sys.NotFound
	case !ok:
		s = &semaphore{name: name, value: int32(value)}
		e.sems[name] = s
	}
	s.m.Lock()
	s.refs++
	s.m.Unlock()
	e.m.Unlock()

	h, res := e.registry.Mint(sys.KindSemaphore, &semRef{sem: s})
	if res != sys.Success {
		s.m.Lock()
		s.refs--
		s.m.Unlock()
		return sys.InvalidHandle, res
	}
	return h, sys.Success
}

func (e *Engine) semaphore(h sys.Handle) (*semaphore, sys.Result) {
	payload, res := e.registry.Lookup(h, sys.KindSemaphore)
	if res != sys.Success {
		return nil, res
	}
	return payload.(*semRef).sem, sys.Success
}

// SemaphoreClose releases the handle. The shared state is dropped once the
// name is unlinked and the last handle closes.
func (e *Engine) SemaphoreClose(h sys.Handle) sys.Result {
	s, res := e.semaphore(h)
	if res != sys.Success {
		return res
	}
	if res := e.registry.Release(h); res != sys.Success {
		return res
	}

	s.m.Lock()
	s.refs--
	drop := s.refs == 0 && s.unlinked
	s.m.Unlock()

	if drop {
		e.m.Lock()
		if current, ok := e.sems[s.name]; ok && current == s {
			delete(e.sems, s.name)
		}
		e.m.Unlock()
	}
	return sys.Success
}

// SemaphoreWait decrements the counter, blocking while it is zero. A
// blocking-op wakeup interrupts the wait.
func (e *Engine) SemaphoreWait(h sys.Handle) sys.Result {
	s, res := e.semaphore(h)
	if res != sys.Success {
		return res
	}
	wake := e.currentWake()

	for {
		s.m.Lock()
		if s.value > 0 {
			s.value--
			s.m.Unlock()
			return sys.Success
		}
		ch := make(chan struct{})
		s.waiters = append(s.waiters, ch)
		s.m.Unlock()

		select {
		case <-ch:
			// A post released us; retest the counter.
		case <-wake:
			s.remove(ch)
			return sys.Other
		}
	}
}

// SemaphoreTryWait decrements the counter or fails with ResourceBusy when it
// is zero.
func (e *Engine) SemaphoreTryWait(h sys.Handle) sys.Result {
	s, res := e.semaphore(h)
	if res != sys.Success {
		return res
	}
	s.m.Lock()
	defer s.m.Unlock()
	if s.value == 0 {
		return sys.ResourceBusy
	}
	s.value--
	return sys.Success
}

// SemaphorePost increments the counter and releases one waiter.
func (e *Engine) SemaphorePost(h sys.Handle) sys.Result {
	s, res := e.semaphore(h)
	if res != sys.Success {
		return res
	}
	s.m.Lock()
	defer s.m.Unlock()
	s.value++
	if len(s.waiters) > 0 {
		close(s.waiters[0])
		s.waiters = s.waiters[1:]
	}
	return sys.Success
}

// SemaphoreValue returns the current counter.
func (e *Engine) SemaphoreValue(h sys.Handle) (int32, sys.Result) {
	s, res := e.semaphore(h)
	if res != sys.Success {
		return 0, res
	}
	s.m.Lock()
	defer s.m.Unlock()
	return s.value, sys.Success
}

// SemaphoreUnlink removes the name mapping. Open handles stay valid until
// closed.
func (e *Engine) SemaphoreUnlink(name string) sys.Result {
	e.m.Lock()
	s, ok := e.sems[name]
	if !ok {
		e.m.Unlock()
		return sys.NotFound
	}
	delete(e.sems, name)
	e.m.Unlock()

	s.m.Lock()
	s.unlinked = true
	s.m.Unlock()
	return sys.Success
}

// remove unregisters a waiter whose wait was interrupted. A grant that
// raced with the interruption is handed back to the counter.
func (s *semaphore) remove(ch chan struct{}) {
	s.m.Lock()
	defer s.m.Unlock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
	select {
	case <-ch:
		// Already granted: the value was consumed by nobody, wake another.
		if len(s.waiters) > 0 {
			close(s.waiters[0])
			s.waiters = s.waiters[1:]
		}
	default:
	}
}
