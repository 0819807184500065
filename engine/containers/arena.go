package containers

// Arena stores values addressed by stable uint32 indices. Index 0 is never
// handed out so it can serve as a null handle. Freed indices are reused.
type Arena[T any] struct {
	items []T
	live  []bool
	free  []uint32
	count int
}

func NewArena[T any]() *Arena[T] {
	// slot zero is reserved
	return &Arena[T]{
		items: make([]T, 1),
		live:  make([]bool, 1),
	}
}

// Insert stores v and returns its index.
func (a *Arena[T]) Insert(v T) uint32 {
	a.count++
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.items[idx] = v
		a.live[idx] = true
		return idx
	}
	a.items = append(a.items, v)
	a.live = append(a.live, true)
	return uint32(len(a.items) - 1)
}

// Get returns the value stored at idx and whether it is live.
func (a *Arena[T]) Get(idx uint32) (T, bool) {
	if int(idx) >= len(a.items) || !a.live[idx] {
		var zero T
		return zero, false
	}
	return a.items[idx], true
}

// Set replaces a live value. It returns false if idx is not live.
func (a *Arena[T]) Set(idx uint32, v T) bool {
	if int(idx) >= len(a.items) || !a.live[idx] {
		return false
	}
	a.items[idx] = v
	return true
}

// Remove frees idx and returns the value that was stored there.
func (a *Arena[T]) Remove(idx uint32) (T, bool) {
	var zero T
	if int(idx) >= len(a.items) || !a.live[idx] {
		return zero, false
	}
	v := a.items[idx]
	a.items[idx] = zero
	a.live[idx] = false
	a.free = append(a.free, idx)
	a.count--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	return a.count
}

// Each calls fn for every live value in index order.
func (a *Arena[T]) Each(fn func(idx uint32, v T)) {
	for i := 1; i < len(a.items); i++ {
		if a.live[i] {
			fn(uint32(i), a.items[i])
		}
	}
}
