package wasi

import (
	"github.com/pgavlin/xos/sys"
)

// The thread and synchronization surface forwards to the task engine under
// the stable host-facing names. Results stay in the boundary code set and are
// returned to the caller unchanged.

// ThreadCreate spawns a guest thread and returns its identifier.
func (b *Bridge) ThreadCreate(entry func(arg interface{}) uint64, arg interface{}, stackSize uint32) (sys.Handle, sys.Result) {
	return b.engine.ThreadCreate(entry, arg, stackSize)
}

// ThreadCreateWithPriority spawns a guest thread; the priority is accepted
// for ABI compatibility and ignored by the host scheduler.
func (b *Bridge) ThreadCreateWithPriority(entry func(arg interface{}) uint64, arg interface{}, stackSize uint32, priority int) (sys.Handle, sys.Result) {
	return b.engine.ThreadCreate(entry, arg, stackSize)
}

// ThreadJoin waits for the thread to exit and returns its value.
func (b *Bridge) ThreadJoin(h sys.Handle) (uint64, sys.Result) {
	return b.engine.Join(h)
}

// ThreadDetach marks the thread as never-joinable.
func (b *Bridge) ThreadDetach(h sys.Handle) sys.Result {
	return b.engine.Detach(h)
}

// ThreadExit terminates the calling thread.
func (b *Bridge) ThreadExit(value uint64) {
	b.engine.Exit(value)
}

// SelfThread returns the calling thread's identifier.
func (b *Bridge) SelfThread() sys.Handle {
	return b.engine.Current()
}

// ThreadStackBoundary returns the lowest valid address of the calling
// thread's stack.
func (b *Bridge) ThreadStackBoundary() uintptr {
	return b.engine.StackBoundary()
}

// Usleep suspends the calling thread for at least the given number of
// microseconds.
func (b *Bridge) Usleep(microseconds uint64) sys.Result {
	return b.engine.Sleep(microseconds)
}

// MutexInit creates a plain mutex.
func (b *Bridge) MutexInit() (sys.Handle, sys.Result) { return b.engine.MutexInit() }

// RecursiveMutexInit creates a recursive mutex.
func (b *Bridge) RecursiveMutexInit() (sys.Handle, sys.Result) {
	return b.engine.RecursiveMutexInit()
}

// MutexLock locks the mutex, blocking until it is available.
func (b *Bridge) MutexLock(h sys.Handle) sys.Result { return b.engine.MutexLock(h) }

// MutexUnlock releases one level of ownership.
func (b *Bridge) MutexUnlock(h sys.Handle) sys.Result { return b.engine.MutexUnlock(h) }

// MutexDestroy destroys an unlocked, uncontended mutex.
func (b *Bridge) MutexDestroy(h sys.Handle) sys.Result { return b.engine.MutexDestroy(h) }

// CondInit creates a condition variable.
func (b *Bridge) CondInit() (sys.Handle, sys.Result) { return b.engine.CondInit() }

// CondDestroy destroys a condition variable with no parked waiters.
func (b *Bridge) CondDestroy(h sys.Handle) sys.Result { return b.engine.CondDestroy(h) }

// CondWait releases the mutex, parks, and re-acquires before returning.
func (b *Bridge) CondWait(cond, mutex sys.Handle) sys.Result {
	return b.engine.CondWait(cond, mutex)
}

// CondRelTimedWait is CondWait bounded by a relative timeout in
// microseconds.
func (b *Bridge) CondRelTimedWait(cond, mutex sys.Handle, microseconds uint64) sys.Result {
	return b.engine.CondTimedWait(cond, mutex, microseconds)
}

// CondSignal wakes one parked waiter.
func (b *Bridge) CondSignal(h sys.Handle) sys.Result { return b.engine.CondSignal(h) }

// CondBroadcast wakes every parked waiter.
func (b *Bridge) CondBroadcast(h sys.Handle) sys.Result { return b.engine.CondBroadcast(h) }

// RWLockInit creates a readers-writer lock.
func (b *Bridge) RWLockInit() (sys.Handle, sys.Result) { return b.engine.RWLockInit() }

// RWLockReadLock acquires the lock for reading.
func (b *Bridge) RWLockReadLock(h sys.Handle) sys.Result { return b.engine.RWLockRead(h) }

// RWLockWriteLock acquires the lock exclusively.
func (b *Bridge) RWLockWriteLock(h sys.Handle) sys.Result { return b.engine.RWLockWrite(h) }

// RWLockUnlock releases whichever side the caller holds.
func (b *Bridge) RWLockUnlock(h sys.Handle) sys.Result { return b.engine.RWLockUnlock(h) }

// RWLockDestroy destroys an idle lock.
func (b *Bridge) RWLockDestroy(h sys.Handle) sys.Result { return b.engine.RWLockDestroy(h) }

// SemOpen opens or creates a named semaphore.
func (b *Bridge) SemOpen(name string, flags int, mode uint32, value uint32) (sys.Handle, sys.Result) {
	return b.engine.SemaphoreOpen(name, flags, mode, value)
}

// SemClose closes a semaphore handle.
func (b *Bridge) SemClose(h sys.Handle) sys.Result { return b.engine.SemaphoreClose(h) }

// SemWait decrements the semaphore, blocking while it is zero.
func (b *Bridge) SemWait(h sys.Handle) sys.Result { return b.engine.SemaphoreWait(h) }

// SemTryWait decrements the semaphore or fails when it is zero.
func (b *Bridge) SemTryWait(h sys.Handle) sys.Result { return b.engine.SemaphoreTryWait(h) }

// SemPost increments the semaphore.
func (b *Bridge) SemPost(h sys.Handle) sys.Result { return b.engine.SemaphorePost(h) }

// SemGetValue returns the semaphore's counter.
func (b *Bridge) SemGetValue(h sys.Handle) (int32, sys.Result) { return b.engine.SemaphoreValue(h) }

// SemUnlink removes the name mapping; open handles stay valid.
func (b *Bridge) SemUnlink(name string) sys.Result { return b.engine.SemaphoreUnlink(name) }

// BlockingOpInit prepares the process-wide wakeup state.
func (b *Bridge) BlockingOpInit() sys.Result { return b.engine.InitializeBlockingOperations() }

// BeginBlockingOp opens the calling thread's cancellation window.
func (b *Bridge) BeginBlockingOp() { b.engine.BeginBlockingOperation() }

// EndBlockingOp closes the calling thread's cancellation window.
func (b *Bridge) EndBlockingOp() { b.engine.EndBlockingOperation() }

// WakeupBlockingOp interrupts the target thread's in-flight blocking call.
func (b *Bridge) WakeupBlockingOp(h sys.Handle) sys.Result {
	return b.engine.WakeupBlockingOperation(h)
}

// DumpsProcMemInfo writes a NUL-terminated memory snapshot into out.
func (b *Bridge) DumpsProcMemInfo(out []byte) (int, sys.Result) {
	return b.engine.DumpMemoryInfo(out)
}
