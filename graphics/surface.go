package graphics

import (
	"github.com/pgavlin/xos/sys"
	"github.com/pgavlin/xos/task"
)

// An Event is a widget event a window queues for its guest.
type Event struct {
	Code   uint32
	Target uintptr
}

// EventNone is the code reported when a window has no queued event.
const EventNone uint32 = 0

// A Surface is the widget toolkit behind the call channel. Only the
// marshalling contract matters here; the concrete toolkit lives in an
// out-of-process driver.
type Surface interface {
	CreateWindow() (uintptr, error)
	DeleteObject(object uintptr) error
	PopEvent(window uintptr) (Event, bool)
	PeekEvent(window uintptr) (Event, bool)
	SetWindowIcon(window uintptr, icon string, color uint32) error
}

// Builtin selectors. The generated widget bindings occupy the low selector
// space; the hand-written helpers sit above them.
const (
	SelectorPercentage Selector = 0x8000 + iota
	SelectorSizeContent
	SelectorWindowCreate
	SelectorWindowPopEvent
	SelectorWindowGetEventCode
	SelectorWindowNextEvent
	SelectorObjectDelete
	SelectorMin
	SelectorMax
	SelectorSpan
)

// RegisterBuiltins installs the hand-written helper handlers on the
// dispatcher. The engine resolves the caller's task through the task engine
// so object identifiers stay scoped per guest task.
func RegisterBuiltins(d *Dispatcher, surface Surface, engine *task.Engine) error {
	builtins := []struct {
		sel Selector
		h   Handler
	}{
		{SelectorPercentage, Handler{
			Name: "percentage", Arity: 1, ReturnWidth: ReturnWord,
			Fn: func(call *Call) (uint64, error) {
				return uint64(uint32(Pct(int32(call.Args[0])))), nil
			},
		}},
		{SelectorSizeContent, Handler{
			Name: "size_content", Arity: 0, ReturnWidth: ReturnWord,
			Fn: func(call *Call) (uint64, error) {
				return uint64(uint32(SizeContent)), nil
			},
		}},
		{SelectorMin, Handler{
			Name: "minimum", Arity: 2, ReturnWidth: ReturnWord,
			Fn: func(call *Call) (uint64, error) {
				return uint64(uint32(Min(int32(call.Args[0]), int32(call.Args[1])))), nil
			},
		}},
		{SelectorMax, Handler{
			Name: "maximum", Arity: 2, ReturnWidth: ReturnWord,
			Fn: func(call *Call) (uint64, error) {
				return uint64(uint32(Max(int32(call.Args[0]), int32(call.Args[1])))), nil
			},
		}},
		{SelectorSpan, Handler{
			Name: "span", Arity: 2, ReturnWidth: ReturnWord,
			Fn: func(call *Call) (uint64, error) {
				return uint64(uint32(Span(int32(call.Args[0]), int32(call.Args[1])))), nil
			},
		}},
		{SelectorWindowCreate, Handler{
			Name: "window_create", Arity: 0, ReturnWidth: ReturnWord,
			Fn: func(call *Call) (uint64, error) {
				window, err := surface.CreateWindow()
				if err != nil {
					return 0, err
				}
				id, err := call.Objects.Register(engine.Current(), window)
				if err != nil {
					return 0, err
				}
				return uint64(id), nil
			},
		}},
		{SelectorWindowPopEvent, Handler{
			Name: "window_pop_event", Arity: 3, ReturnWidth: ReturnNone,
			Fn: func(call *Call) (uint64, error) {
				return 0, popEvent(call, surface, engine.Current())
			},
		}},
		{SelectorWindowGetEventCode, Handler{
			Name: "window_get_event_code", Arity: 1, ReturnWidth: ReturnWord,
			Fn: func(call *Call) (uint64, error) {
				window, err := call.Objects.Object(engine.Current(), ObjectID(call.Args[0]))
				if err != nil {
					return 0, err
				}
				if event, ok := surface.PeekEvent(window); ok {
					return uint64(event.Code), nil
				}
				return uint64(EventNone), nil
			},
		}},
		{SelectorWindowNextEvent, Handler{
			Name: "window_next_event", Arity: 1, ReturnWidth: ReturnNone,
			Fn: func(call *Call) (uint64, error) {
				window, err := call.Objects.Object(engine.Current(), ObjectID(call.Args[0]))
				if err != nil {
					return 0, err
				}
				surface.PopEvent(window)
				return 0, nil
			},
		}},
		{SelectorObjectDelete, Handler{
			Name: "object_delete", Arity: 1, ReturnWidth: ReturnNone,
			Fn: func(call *Call) (uint64, error) {
				object, err := call.Objects.Remove(engine.Current(), ObjectID(call.Args[0]))
				if err != nil {
					return 0, err
				}
				return 0, surface.DeleteObject(object)
			},
		}},
	}

	for _, b := range builtins {
		if err := d.Register(b.sel, b.h); err != nil {
			return err
		}
	}
	return nil
}

// popEvent dequeues a window event and stores its code and target into the
// guest pointers passed as arguments 1 and 2.
func popEvent(call *Call, surface Surface, current sys.Handle) error {
	window, err := call.Objects.Object(current, ObjectID(call.Args[0]))
	if err != nil {
		return err
	}
	event, ok := surface.PopEvent(window)
	if !ok {
		return nil
	}

	codePtr, targetPtr := uint32(call.Args[1]), uint32(call.Args[2])
	id, err := call.Objects.ID(event.Target)
	if err != nil {
		// The target was never handed to the guest; register it now so the
		// event stays addressable.
		id, err = call.Objects.Register(current, event.Target)
		if err != nil {
			return err
		}
	}
	call.Env.Memory().PutUint32(event.Code, codePtr)
	call.Env.Memory().PutUint16(uint16(id), targetPtr)
	return nil
}
