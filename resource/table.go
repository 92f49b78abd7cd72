package resource

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("resource table closed")

// Table maps integer handles to opened objects. Freed handles are reused.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value any
	kind  Kind
	valid bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 8),
	}
}

// Insert stores value and returns its handle.
func (t *Table) Insert(kind Kind, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry{kind: kind, value: value, valid: true}
	var h Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind, Value: value})
	return h, nil
}

// Get returns the value for h if it holds an object of kind.
func (t *Table) Get(h Handle, kind Kind) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.lookup(h)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// Remove drops h if it holds an object of kind and returns the value.
func (t *Table) Remove(h Handle, kind Kind) (any, bool) {
	t.mu.Lock()
	e, ok := t.lookup(h)
	if !ok || e.kind != kind {
		t.mu.Unlock()
		return nil, false
	}
	t.entries[h-1] = entry{}
	t.freeList = append(t.freeList, h)
	t.mu.Unlock()

	t.notify(Event{Type: EventDropped, Handle: h, Kind: kind, Value: e.value})
	return e.value, true
}

// lookup requires t.mu.
func (t *Table) lookup(h Handle) (entry, bool) {
	if h == 0 || int(h) > len(t.entries) {
		return entry{}, false
	}
	e := t.entries[h-1]
	return e, e.valid
}

// Count returns the number of live objects of kind.
func (t *Table) Count(kind Kind) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e.valid && e.kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of live objects.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Each calls fn for every live object until fn returns false.
func (t *Table) Each(fn func(Handle, Kind, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, e := range t.entries {
		if e.valid && !fn(Handle(i+1), e.kind, e.value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Clear drops every object, closing values that implement Closer. It
// returns the first close error.
func (t *Table) Clear() error {
	type live struct {
		h    Handle
		kind Kind
	}
	var all []live
	t.Each(func(h Handle, k Kind, _ any) bool {
		all = append(all, live{h, k})
		return true
	})
	var first error
	for _, l := range all {
		v, ok := t.Remove(l.h, l.kind)
		if !ok {
			continue
		}
		if c, ok := v.(Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Close clears the table and rejects later inserts.
func (t *Table) Close() error {
	err := t.Clear()
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return err
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
