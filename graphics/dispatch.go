package graphics

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/pgavlin/xos/exec"
)

// A Selector identifies one graphics function on the shared call channel.
type Selector uint16

// Call failure codes returned to the guest. Zero is success.
const (
	CallOK              int32 = 0
	CallUnknownFunction int32 = 1
	CallInvalidPointer  int32 = 2
	CallFailed          int32 = 3
)

// MaxArguments is the number of word-sized argument slots on the channel.
const MaxArguments = 7

// Return widths a handler may declare.
const (
	ReturnNone  = 0
	ReturnWord  = 4
	ReturnWide  = 8
	ReturnPoint = ReturnWord
)

// A Handler serves one selector. Arity and return width are declared up
// front; the dispatcher rejects mismatched registrations and treats a
// mismatched call as fatal to the guest context.
type Handler struct {
	Name        string
	Arity       int
	ReturnWidth int
	Fn          func(call *Call) (uint64, error)
}

// A Call carries one invocation across the channel.
type Call struct {
	Env      *exec.Environment
	Selector Selector
	Args     []uint64
	Objects  *TranslationMap
}

// Trap is panicked on fatal channel misuse; the engine aborts the guest
// context when it unwinds.
type Trap struct {
	Selector Selector
	Reason   string
}

func (t Trap) Error() string {
	return fmt.Sprintf("graphics call %d: %s", t.Selector, t.Reason)
}

// A Dispatcher serves the single variadic graphics entry point. One call
// runs at a time; the channel is shared by every guest thread.
type Dispatcher struct {
	logger hclog.Logger

	m        sync.Mutex
	handlers map[Selector]Handler
	objects  *TranslationMap
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger hclog.Logger) *Dispatcher {
	if logger == nil {
		logger = hclog.Default().Named("graphics")
	}
	return &Dispatcher{
		logger:   logger,
		handlers: map[Selector]Handler{},
		objects:  NewTranslationMap(),
	}
}

// Register installs a handler for sel. Registration happens at startup;
// duplicate selectors and malformed declarations are rejected.
func (d *Dispatcher) Register(sel Selector, h Handler) error {
	if h.Fn == nil {
		return fmt.Errorf("handler %q has no function", h.Name)
	}
	if h.Arity < 0 || h.Arity > MaxArguments {
		return fmt.Errorf("handler %q declares arity %d", h.Name, h.Arity)
	}
	switch h.ReturnWidth {
	case ReturnNone, ReturnWord, ReturnWide:
	default:
		return fmt.Errorf("handler %q declares return width %d", h.Name, h.ReturnWidth)
	}

	d.m.Lock()
	defer d.m.Unlock()
	if _, ok := d.handlers[sel]; ok {
		return fmt.Errorf("selector %d already registered", sel)
	}
	d.handlers[sel] = h
	return nil
}

// Call dispatches one invocation. The argument count must match the
// handler's declared arity exactly; a mismatch is fatal. Unknown selectors
// fail with a distinct code. Handler errors are logged and reported to the
// guest as a failure code.
func (d *Dispatcher) Call(env *exec.Environment, sel Selector, args [MaxArguments]uint64, count uint8, resultPtr uint32) int32 {
	d.m.Lock()
	defer d.m.Unlock()

	h, ok := d.handlers[sel]
	if !ok {
		d.logger.Error("unknown graphics selector", "selector", sel, "count", count)
		return CallUnknownFunction
	}
	if int(count) != h.Arity {
		panic(Trap{Selector: sel, Reason: fmt.Sprintf("arity mismatch: declared %d, called with %d", h.Arity, count)})
	}
	if h.ReturnWidth != ReturnNone && resultPtr == 0 {
		panic(Trap{Selector: sel, Reason: "missing result pointer"})
	}

	value, err := h.Fn(&Call{
		Env:      env,
		Selector: sel,
		Args:     args[:count],
		Objects:  d.objects,
	})
	if err != nil {
		d.logger.Error("graphics call failed",
			"function", h.Name, "selector", sel, "count", count, "error", err)
		return CallFailed
	}

	switch h.ReturnWidth {
	case ReturnWord:
		env.Memory().PutUint32(uint32(value), resultPtr)
	case ReturnWide:
		env.Memory().PutUint64(value, resultPtr)
	}
	return CallOK
}

// Objects returns the dispatcher's object translation map.
func (d *Dispatcher) Objects() *TranslationMap {
	return d.objects
}

// ModuleName is the import module the guest binds the channel through.
const ModuleName = "xila_graphics"

// CallSymbol is the single exported entry point.
const CallSymbol = "xila_graphics_call"

// A Module exposes the dispatcher to a guest instance.
type Module struct {
	env        *exec.Environment
	dispatcher *Dispatcher
}

// NewModule binds the dispatcher to a guest environment.
func NewModule(env *exec.Environment, dispatcher *Dispatcher) *Module {
	return &Module{env: env, dispatcher: dispatcher}
}

func (m *Module) Name() string {
	return ModuleName
}

// Instantiate lets the module double as its own definition.
func (m *Module) Instantiate(string) (exec.Module, error) {
	return m, nil
}

// GetFunction resolves the call symbol. Both ABI spellings bind to the same
// entry point.
func (m *Module) GetFunction(name string) (exec.Function, error) {
	switch name {
	case CallSymbol, "Xila_graphics_call":
		return exec.NewHostFunction(m.call), nil
	default:
		return nil, exec.ErrUnknownFunction
	}
}

func (m *Module) call(selector uint32, a0, a1, a2, a3, a4, a5, a6 uint32, count uint32, resultPtr uint32) int32 {
	args := [MaxArguments]uint64{
		uint64(a0), uint64(a1), uint64(a2), uint64(a3), uint64(a4), uint64(a5), uint64(a6),
	}
	return m.dispatcher.Call(m.env, Selector(selector), args, uint8(count), resultPtr)
}
