package graphics

import (
	"fmt"
	"sync"

	"github.com/pgavlin/xos/sys"
)

// An ObjectID is the 16-bit identifier a guest uses to name a host-side
// widget object. Zero is never a valid identifier.
type ObjectID uint16

// A TranslationMap tracks which host objects each guest task may address
// and translates between guest identifiers and host object references. A
// task can only reach objects registered under its own identifier.
type TranslationMap struct {
	m    sync.Mutex
	next ObjectID
	byID map[ObjectID]mapEntry
	byObject map[uintptr]ObjectID
}

type mapEntry struct {
	task   sys.Handle
	object uintptr
}

// NewTranslationMap creates an empty map.
func NewTranslationMap() *TranslationMap {
	return &TranslationMap{
		next:     1,
		byID:     map[ObjectID]mapEntry{},
		byObject: map[uintptr]ObjectID{},
	}
}

// Register assigns a guest identifier to a host object owned by task. An
// object already registered keeps its identifier.
func (t *TranslationMap) Register(task sys.Handle, object uintptr) (ObjectID, error) {
	t.m.Lock()
	defer t.m.Unlock()

	if id, ok := t.byObject[object]; ok {
		return id, nil
	}
	for i := 0; i < 0xFFFF; i++ {
		id := t.next
		t.next++
		if t.next == 0 {
			t.next = 1
		}
		if _, ok := t.byID[id]; !ok {
			t.byID[id] = mapEntry{task: task, object: object}
			t.byObject[object] = id
			return id, nil
		}
	}
	return 0, fmt.Errorf("object table full")
}

// Object resolves a guest identifier for task.
func (t *TranslationMap) Object(task sys.Handle, id ObjectID) (uintptr, error) {
	t.m.Lock()
	defer t.m.Unlock()

	entry, ok := t.byID[id]
	if !ok || entry.task != task {
		return 0, fmt.Errorf("unknown object %d", id)
	}
	return entry.object, nil
}

// ID returns the guest identifier of a registered host object.
func (t *TranslationMap) ID(object uintptr) (ObjectID, error) {
	t.m.Lock()
	defer t.m.Unlock()

	id, ok := t.byObject[object]
	if !ok {
		return 0, fmt.Errorf("unregistered object %#x", object)
	}
	return id, nil
}

// Remove drops the identifier of an object owned by task and returns the
// host object it named.
func (t *TranslationMap) Remove(task sys.Handle, id ObjectID) (uintptr, error) {
	t.m.Lock()
	defer t.m.Unlock()

	entry, ok := t.byID[id]
	if !ok || entry.task != task {
		return 0, fmt.Errorf("unknown object %d", id)
	}
	delete(t.byID, id)
	delete(t.byObject, entry.object)
	return entry.object, nil
}

// RemoveTask drops every object owned by task, returning how many were
// removed.
func (t *TranslationMap) RemoveTask(task sys.Handle) int {
	t.m.Lock()
	defer t.m.Unlock()

	removed := 0
	for id, entry := range t.byID {
		if entry.task == task {
			delete(t.byID, id)
			delete(t.byObject, entry.object)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered objects.
func (t *TranslationMap) Len() int {
	t.m.Lock()
	defer t.m.Unlock()
	return len(t.byID)
}
