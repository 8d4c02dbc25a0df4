package task

import (
	"sync"
	"time"

	"github.com/pgavlin/xos/sys"
)

// A cond is a condition variable. Every waiter parks on its own channel;
// signal closes one, broadcast closes them all. Spurious wakeups are
// permitted by contract, so a cancelled or timed-out wait still returns
// success after re-acquiring the mutex.
type cond struct {
	m       sync.Mutex
	waiters []chan struct{}
}

// CondInit creates a condition variable.
func (e *Engine) CondInit() (sys.Handle, sys.Result) {
	return e.registry.Mint(sys.KindCond, &cond{})
}

func (e *Engine) cond(h sys.Handle) (*cond, sys.Result) {
	payload, res := e.registry.Lookup(h, sys.KindCond)
	if res != sys.Success {
		return nil, res
	}
	return payload.(*cond), sys.Success
}

// CondDestroy releases the condition variable. Destroying one with parked
// waiters is busy.
func (e *Engine) CondDestroy(h sys.Handle) sys.Result {
	cv, res := e.cond(h)
	if res != sys.Success {
		return res
	}
	cv.m.Lock()
	busy := len(cv.waiters) > 0
	cv.m.Unlock()
	if busy {
		return sys.ResourceBusy
	}
	return e.registry.Release(h)
}

// CondWait atomically releases the mutex and parks until signalled. The
// mutex is re-acquired before returning, whatever woke the waiter.
func (e *Engine) CondWait(h, mutexHandle sys.Handle) sys.Result {
	return e.condWait(h, mutexHandle, 0)
}

// CondTimedWait is CondWait with a deadline in microseconds.
func (e *Engine) CondTimedWait(h, mutexHandle sys.Handle, microseconds uint64) sys.Result {
	if microseconds == 0 {
		microseconds = 1
	}
	return e.condWait(h, mutexHandle, time.Duration(microseconds)*time.Microsecond)
}

func (e *Engine) condWait(h, mutexHandle sys.Handle, timeout time.Duration) sys.Result {
	cv, res := e.cond(h)
	if res != sys.Success {
		return res
	}
	if _, res := e.mutex(mutexHandle); res != sys.Success {
		return res
	}

	ch := make(chan struct{})
	cv.m.Lock()
	cv.waiters = append(cv.waiters, ch)
	cv.m.Unlock()

	if res := e.MutexUnlock(mutexHandle); res != sys.Success {
		cv.remove(ch)
		return res
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-ch:
	case <-timer:
		cv.remove(ch)
	case <-e.currentWake():
		cv.remove(ch)
	}

	return e.MutexLock(mutexHandle)
}

// remove unregisters a waiter that stopped waiting on its own.
func (c *cond) remove(ch chan struct{}) {
	c.m.Lock()
	defer c.m.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// CondSignal wakes at least one waiter, if any is parked.
func (e *Engine) CondSignal(h sys.Handle) sys.Result {
	cv, res := e.cond(h)
	if res != sys.Success {
		return res
	}
	cv.m.Lock()
	defer cv.m.Unlock()
	if len(cv.waiters) > 0 {
		close(cv.waiters[0])
		cv.waiters = cv.waiters[1:]
	}
	return sys.Success
}

// CondBroadcast wakes every parked waiter.
func (e *Engine) CondBroadcast(h sys.Handle) sys.Result {
	cv, res := e.cond(h)
	if res != sys.Success {
		return res
	}
	cv.m.Lock()
	defer cv.m.Unlock()
	for _, ch := range cv.waiters {
		close(ch)
	}
	cv.waiters = nil
	return sys.Success
}
