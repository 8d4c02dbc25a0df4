package task

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/pgavlin/xos/sys"
)

// defaultStackSize is assumed for threads the engine did not spawn itself.
const defaultStackSize = 1 << 20

// An Engine owns the thread table and every synchronization primitive minted
// for guest code. Thread identifiers are handles in the shared registry, so
// stale identifiers are rejected like any other dead handle.
type Engine struct {
	registry *sys.Registry
	logger   hclog.Logger

	m       sync.Mutex
	byGoid  map[uint64]sys.Handle
	sems    map[string]*semaphore
	blockup sync.Once
}

// NewEngine creates an engine over the given registry.
func NewEngine(registry *sys.Registry, logger hclog.Logger) *Engine {
	if logger == nil {
		logger = hclog.Default().Named("task")
	}
	return &Engine{
		registry: registry,
		logger:   logger,
		byGoid:   map[uint64]sys.Handle{},
		sems:     map[string]*semaphore{},
	}
}

type threadState uint8

const (
	threadRunning threadState = iota
	threadExited
)

type thread struct {
	m sync.Mutex

	state    threadState
	value    uint64
	joined   bool
	detached bool
	done     chan struct{}

	stackBase uintptr
	stackSize uint32

	// blocking-op window
	blocking bool
	latched  bool
	wake     chan struct{}
}

// threadExit is panicked by Exit and recovered by the spawn trampoline.
type threadExit struct {
	value uint64
}

func newThread(stackSize uint32) *thread {
	return &thread{
		done:      make(chan struct{}),
		stackSize: stackSize,
		wake:      make(chan struct{}, 1),
	}
}

func (e *Engine) thread(h sys.Handle) (*thread, sys.Result) {
	payload, res := e.registry.Lookup(h, sys.KindThread)
	if res != sys.Success {
		return nil, res
	}
	return payload.(*thread), sys.Success
}

// goid returns the runtime identifier of the calling goroutine. The engine
// keys its thread table on it so identifier queries need no argument.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}

// ThreadCreate spawns a host task running entry(arg) once and returns its
// identifier. The stack size is recorded for boundary queries; the host
// runtime sizes the actual stack itself.
func (e *Engine) ThreadCreate(entry func(arg interface{}) uint64, arg interface{}, stackSize uint32) (sys.Handle, sys.Result) {
	if entry == nil {
		return sys.InvalidHandle, sys.InvalidInput
	}
	if stackSize == 0 {
		stackSize = defaultStackSize
	}

	t := newThread(stackSize)
	h, res := e.registry.Mint(sys.KindThread, t)
	if res != sys.Success {
		return sys.InvalidHandle, res
	}

	ready := make(chan struct{})
	go func() {
		var anchor byte
		t.stackBase = addressOf(&anchor)

		id := goid()
		e.m.Lock()
		e.byGoid[id] = h
		e.m.Unlock()
		close(ready)

		value := e.run(entry, arg)

		e.m.Lock()
		delete(e.byGoid, id)
		e.m.Unlock()

		t.m.Lock()
		t.state, t.value = threadExited, value
		detached := t.detached
		t.m.Unlock()
		close(t.done)

		if detached {
			e.registry.Release(h)
		}
	}()
	<-ready

	e.logger.Debug("thread created", "tid", h, "stack_size", stackSize)
	return h, sys.Success
}

// run invokes entry and turns an Exit unwind into a return value.
func (e *Engine) run(entry func(arg interface{}) uint64, arg interface{}) (value uint64) {
	defer func() {
		if x := recover(); x != nil {
			exit, ok := x.(threadExit)
			if !ok {
				panic(x)
			}
			value = exit.value
		}
	}()
	return entry(arg)
}

// Exit terminates the calling thread with the given value. It must only be
// called from a thread the engine created.
func (e *Engine) Exit(value uint64) {
	panic(threadExit{value: value})
}

// Join blocks until the thread exits and returns its value. Exactly one of
// Join and Detach succeeds per thread; the identifier dies with the join.
func (e *Engine) Join(h sys.Handle) (uint64, sys.Result) {
	t, res := e.thread(h)
	if res != sys.Success {
		return 0, res
	}

	t.m.Lock()
	if t.joined || t.detached {
		t.m.Unlock()
		return 0, sys.InvalidIdentifier
	}
	t.joined = true
	t.m.Unlock()

	if interrupted := e.waitOrWake(t.done); interrupted {
		t.m.Lock()
		t.joined = false
		t.m.Unlock()
		return 0, sys.Other
	}

	t.m.Lock()
	value := t.value
	t.m.Unlock()

	e.registry.Release(h)
	return value, sys.Success
}

// Detach marks the thread as never-joinable. Its identifier is released as
// soon as the thread exits.
func (e *Engine) Detach(h sys.Handle) sys.Result {
	t, res := e.thread(h)
	if res != sys.Success {
		return res
	}

	t.m.Lock()
	if t.joined || t.detached {
		t.m.Unlock()
		return sys.InvalidIdentifier
	}
	t.detached = true
	exited := t.state == threadExited
	t.m.Unlock()

	if exited {
		e.registry.Release(h)
	}
	return sys.Success
}

// Current returns the identifier of the calling thread. Threads the engine
// did not spawn are adopted on first query so boundary calls always have a
// valid identifier.
func (e *Engine) Current() sys.Handle {
	id := goid()

	e.m.Lock()
	h, ok := e.byGoid[id]
	e.m.Unlock()
	if ok {
		return h
	}

	var anchor byte
	t := newThread(defaultStackSize)
	t.stackBase = addressOf(&anchor)

	h, res := e.registry.Mint(sys.KindThread, t)
	if res != sys.Success {
		return sys.InvalidHandle
	}
	e.m.Lock()
	e.byGoid[id] = h
	e.m.Unlock()
	return h
}

// StackBoundary returns the lowest valid address of the calling thread's
// stack, estimated from the anchor recorded at spawn and the requested
// stack size.
func (e *Engine) StackBoundary() uintptr {
	t, res := e.thread(e.Current())
	if res != sys.Success {
		return 0
	}
	if t.stackBase < uintptr(t.stackSize) {
		return 0
	}
	return t.stackBase - uintptr(t.stackSize)
}

// Sleep suspends the calling thread for at least the given number of
// microseconds. A blocking-op wakeup shortens the wait without error.
func (e *Engine) Sleep(microseconds uint64) sys.Result {
	timer := time.NewTimer(time.Duration(microseconds) * time.Microsecond)
	defer timer.Stop()

	t, res := e.thread(e.Current())
	if res != sys.Success {
		return res
	}
	select {
	case <-timer.C:
	case <-e.wakeChan(t):
	}
	return sys.Success
}

// InitializeBlockingOperations prepares the process-wide wakeup state. It is
// idempotent.
func (e *Engine) InitializeBlockingOperations() sys.Result {
	e.blockup.Do(func() {})
	return sys.Success
}

// BeginBlockingOperation opens a cancellation window for the calling thread.
// A wakeup latched while no window was open is consumed here, so the first
// blocking call inside the window returns immediately.
func (e *Engine) BeginBlockingOperation() {
	t, res := e.thread(e.Current())
	if res != sys.Success {
		return
	}
	t.m.Lock()
	t.blocking = true
	if t.latched {
		t.latched = false
		t.m.Unlock()
		e.post(t)
		return
	}
	t.m.Unlock()
}

// EndBlockingOperation closes the calling thread's cancellation window and
// discards any wakeup that was delivered but never observed.
func (e *Engine) EndBlockingOperation() {
	t, res := e.thread(e.Current())
	if res != sys.Success {
		return
	}
	t.m.Lock()
	t.blocking = false
	t.m.Unlock()

	select {
	case <-t.wake:
	default:
	}
}

// WakeupBlockingOperation interrupts the target thread's in-flight blocking
// call. When no call is active the wakeup is latched for the thread's next
// window.
func (e *Engine) WakeupBlockingOperation(h sys.Handle) sys.Result {
	t, res := e.thread(h)
	if res != sys.Success {
		return res
	}
	t.m.Lock()
	if !t.blocking {
		t.latched = true
		t.m.Unlock()
		return sys.Success
	}
	t.m.Unlock()
	e.post(t)
	return sys.Success
}

func (e *Engine) post(t *thread) {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// wakeChan returns the channel a blocking call selects on alongside its own
// completion. The caller must be the thread t.
func (e *Engine) wakeChan(t *thread) <-chan struct{} {
	return t.wake
}

// currentWake resolves the calling thread's wake channel for use inside
// blocking primitives.
func (e *Engine) currentWake() <-chan struct{} {
	t, res := e.thread(e.Current())
	if res != sys.Success {
		return nil
	}
	return t.wake
}

// waitOrWake blocks until done closes or the calling thread is woken.
// It reports whether the wait was interrupted.
func (e *Engine) waitOrWake(done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	case <-e.currentWake():
		return true
	}
}

// DumpMemoryInfo writes a NUL-terminated human-readable snapshot of the
// process memory state into out, truncating as needed. It returns the
// number of bytes written, terminator excluded.
func (e *Engine) DumpMemoryInfo(out []byte) (int, sys.Result) {
	if len(out) == 0 {
		return 0, sys.InvalidInput
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "heap alloc: %d\n", stats.HeapAlloc)
	fmt.Fprintf(&buf, "heap sys:   %d\n", stats.HeapSys)
	fmt.Fprintf(&buf, "stack sys:  %d\n", stats.StackSys)
	fmt.Fprintf(&buf, "gc cycles:  %d\n", stats.NumGC)
	fmt.Fprintf(&buf, "goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&buf, "handles:    %d\n", e.registry.Len())

	n := copy(out[:len(out)-1], buf.Bytes())
	out[n] = 0
	return n, sys.Success
}
