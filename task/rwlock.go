package task

import (
	"sync"

	"github.com/pgavlin/xos/sys"
)

// A rwlock admits many readers or one writer. A parked writer blocks new
// readers, so writers cannot starve under a finite stream of readers.
type rwlock struct {
	m sync.Mutex

	readers int
	writing bool

	readerQ []chan struct{}
	writerQ []chan struct{}
}

// RWLockInit creates a readers-writer lock.
func (e *Engine) RWLockInit() (sys.Handle, sys.Result) {
	return e.registry.Mint(sys.KindRWLock, &rwlock{})
}

func (e *Engine) rwlock(h sys.Handle) (*rwlock, sys.Result) {
	payload, res := e.registry.Lookup(h, sys.KindRWLock)
	if res != sys.Success {
		return nil, res
	}
	return payload.(*rwlock), sys.Success
}

// RWLockDestroy releases the lock handle; a held or contended lock is busy.
func (e *Engine) RWLockDestroy(h sys.Handle) sys.Result {
	rw, res := e.rwlock(h)
	if res != sys.Success {
		return res
	}
	rw.m.Lock()
	busy := rw.writing || rw.readers > 0 || len(rw.readerQ) > 0 || len(rw.writerQ) > 0
	rw.m.Unlock()
	if busy {
		return sys.ResourceBusy
	}
	return e.registry.Release(h)
}

// RWLockRead acquires the lock for reading, blocking while a writer holds
// it or is next in line.
func (e *Engine) RWLockRead(h sys.Handle) sys.Result {
	rw, res := e.rwlock(h)
	if res != sys.Success {
		return res
	}

	rw.m.Lock()
	if !rw.writing && len(rw.writerQ) == 0 {
		rw.readers++
		rw.m.Unlock()
		return sys.Success
	}
	ch := make(chan struct{})
	rw.readerQ = append(rw.readerQ, ch)
	rw.m.Unlock()

	select {
	case <-ch:
		return sys.Success
	case <-e.currentWake():
		rw.abandon(ch)
		return sys.Other
	}
}

// RWLockWrite acquires the lock exclusively.
func (e *Engine) RWLockWrite(h sys.Handle) sys.Result {
	rw, res := e.rwlock(h)
	if res != sys.Success {
		return res
	}

	rw.m.Lock()
	if !rw.writing && rw.readers == 0 {
		rw.writing = true
		rw.m.Unlock()
		return sys.Success
	}
	ch := make(chan struct{})
	rw.writerQ = append(rw.writerQ, ch)
	rw.m.Unlock()

	select {
	case <-ch:
		return sys.Success
	case <-e.currentWake():
		rw.abandon(ch)
		return sys.Other
	}
}

// RWLockUnlock releases whichever side the caller holds.
func (e *Engine) RWLockUnlock(h sys.Handle) sys.Result {
	rw, res := e.rwlock(h)
	if res != sys.Success {
		return res
	}

	rw.m.Lock()
	defer rw.m.Unlock()

	switch {
	case rw.writing:
		rw.writing = false
	case rw.readers > 0:
		rw.readers--
	default:
		return sys.InvalidInput
	}
	rw.admit()
	return sys.Success
}

// abandon removes a parked waiter that was cancelled. The grant may already
// be in flight; when the channel is closed the claim is handed back.
func (rw *rwlock) abandon(ch chan struct{}) {
	rw.m.Lock()
	defer rw.m.Unlock()

	for i, w := range rw.writerQ {
		if w == ch {
			rw.writerQ = append(rw.writerQ[:i], rw.writerQ[i+1:]...)
			return
		}
	}
	for i, w := range rw.readerQ {
		if w == ch {
			rw.readerQ = append(rw.readerQ[:i], rw.readerQ[i+1:]...)
			return
		}
	}

	// Already granted: release the side we were granted.
	select {
	case <-ch:
		if rw.writing {
			rw.writing = false
		} else if rw.readers > 0 {
			rw.readers--
		}
		rw.admit()
	default:
	}
}

// admit hands the lock to the next waiters: one writer if any is parked,
// otherwise every parked reader. Callers hold the state lock.
func (rw *rwlock) admit() {
	if rw.writing || rw.readers > 0 {
		return
	}
	if len(rw.writerQ) > 0 {
		rw.writing = true
		close(rw.writerQ[0])
		rw.writerQ = rw.writerQ[1:]
		return
	}
	for _, ch := range rw.readerQ {
		rw.readers++
		close(ch)
	}
	rw.readerQ = nil
}
