package vulkan

import "sync"

// handleTable hands out opaque uint64 handles for Vulkan objects. Zero is
// never issued.
type handleTable[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]T
}

func newHandleTable[T any]() *handleTable[T] {
	return &handleTable[T]{items: make(map[uint64]T)}
}

func (t *handleTable[T]) add(v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.items[t.next] = v
	return t.next
}

func (t *handleTable[T]) get(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	return v, ok
}

func (t *handleTable[T]) remove(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	if ok {
		delete(t.items, h)
	}
	return v, ok
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// each visits every live entry in no particular order.
func (t *handleTable[T]) each(fn func(h uint64, v T)) {
	t.mu.Lock()
	items := make(map[uint64]T, len(t.items))
	for h, v := range t.items {
		items[h] = v
	}
	t.mu.Unlock()
	for h, v := range items {
		fn(h, v)
	}
}
