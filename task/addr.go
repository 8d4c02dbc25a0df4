package task

import "unsafe"

// addressOf returns the numeric address of p. It exists so the stack anchor
// arithmetic stays in one place.
func addressOf(p *byte) uintptr {
	return uintptr(unsafe.Pointer(p))
}
