package exec

import "sync"

// An Environment is the per-instance state host functions observe: the guest
// linear memory plus whatever instance data the embedder attaches (the task
// identifier of the guest thread, typically).
type Environment struct {
	m sync.Mutex

	memory *Memory
	custom interface{}
}

// NewEnvironment creates an environment over the given memory.
func NewEnvironment(memory *Memory) *Environment {
	return &Environment{memory: memory}
}

// Memory returns the guest linear memory.
func (e *Environment) Memory() *Memory {
	return e.memory
}

// SetCustomData attaches embedder data to the environment.
func (e *Environment) SetCustomData(v interface{}) {
	e.m.Lock()
	defer e.m.Unlock()
	e.custom = v
}

// CustomData returns the embedder data attached to the environment, if any.
func (e *Environment) CustomData() (interface{}, bool) {
	e.m.Lock()
	defer e.m.Unlock()
	return e.custom, e.custom != nil
}
