package sys

import (
	"sync"

	"github.com/willf/bitset"
)

type slot struct {
	kind       Kind
	generation uint32
	payload    interface{}
}

// A Registry maps handles to typed payloads. Lookups are O(1); slots are
// reused only after an explicit release, which bumps the slot generation so
// handles minted before the release keep failing.
type Registry struct {
	m     sync.Mutex
	used  *bitset.BitSet
	slots []slot
	limit uint
}

// NewRegistry creates a registry that holds at most limit live handles.
func NewRegistry(limit uint) *Registry {
	return &Registry{
		used:  bitset.New(limit),
		slots: make([]slot, limit),
		limit: limit,
	}
}

// Mint allocates a slot for payload and returns its handle. It fails with
// TooManyOpenFiles when every slot is in use.
func (r *Registry) Mint(kind Kind, payload interface{}) (Handle, Result) {
	r.m.Lock()
	defer r.m.Unlock()

	index, ok := r.used.NextClear(0)
	if !ok || index >= r.limit {
		return InvalidHandle, TooManyOpenFiles
	}
	r.used.Set(index)

	s := &r.slots[index]
	s.kind, s.payload = kind, payload
	return makeHandle(uint32(index), s.generation), Success
}

// Lookup returns the payload stored under h. It fails with InvalidIdentifier
// when h is the invalid sentinel, the slot is unused, the generation is
// stale, or the slot holds a different kind.
func (r *Registry) Lookup(h Handle, kind Kind) (interface{}, Result) {
	r.m.Lock()
	defer r.m.Unlock()

	s, res := r.find(h, kind)
	if res != Success {
		return nil, res
	}
	return s.payload, Success
}

// Release frees the slot backing h and invalidates every copy of h.
// Releasing an already-released handle fails with InvalidIdentifier.
func (r *Registry) Release(h Handle) Result {
	r.m.Lock()
	defer r.m.Unlock()

	s, res := r.find(h, 0)
	if res != Success {
		return res
	}
	s.generation++
	s.kind, s.payload = 0, nil
	r.used.Clear(uint(h.slot()))
	return Success
}

// KindOf reports the kind stored under h without retrieving the payload.
func (r *Registry) KindOf(h Handle) (Kind, Result) {
	r.m.Lock()
	defer r.m.Unlock()

	s, res := r.find(h, 0)
	if res != Success {
		return 0, res
	}
	return s.kind, Success
}

// Len returns the number of live handles.
func (r *Registry) Len() uint {
	r.m.Lock()
	defer r.m.Unlock()
	return r.used.Count()
}

// Walk calls visit for every live handle. The registry lock is held for the
// duration of the walk; visit must not call back into the registry.
func (r *Registry) Walk(visit func(h Handle, kind Kind, payload interface{})) {
	r.m.Lock()
	defer r.m.Unlock()

	for i, ok := r.used.NextSet(0); ok; i, ok = r.used.NextSet(i + 1) {
		s := &r.slots[i]
		visit(makeHandle(uint32(i), s.generation), s.kind, s.payload)
	}
}

// find locates the live slot for h. A zero kind matches any kind.
func (r *Registry) find(h Handle, kind Kind) (*slot, Result) {
	if h == InvalidHandle {
		return nil, InvalidIdentifier
	}
	index := uint(h.slot())
	if index >= r.limit || !r.used.Test(index) {
		return nil, InvalidIdentifier
	}
	s := &r.slots[index]
	if s.generation != h.generation() {
		return nil, InvalidIdentifier
	}
	if kind != 0 && s.kind != kind {
		return nil, InvalidIdentifier
	}
	return s, Success
}
