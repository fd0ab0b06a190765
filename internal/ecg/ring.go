package ecg

// Ring is a fixed-capacity circular buffer with overwrite-oldest semantics.
// Once full, each Push evicts the oldest element; nothing is ever reordered.
// It is not safe for concurrent use; the owning Session serializes access.
type Ring[T any] struct {
	data []T
	head int // next write position
	size int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

func (r *Ring[T]) Push(v T) {
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	if r.size < len(r.data) {
		r.size++
	}
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.data) }

// At returns the i-th retained element, oldest first. i must be in [0, Len).
func (r *Ring[T]) At(i int) T {
	idx := (r.head - r.size + i + len(r.data)) % len(r.data)
	return r.data[idx]
}

// Values returns a copy of the retained elements, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Last returns a copy of the newest n retained elements, oldest first.
// If fewer than n are retained, all of them are returned.
func (r *Ring[T]) Last(n int) []T {
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(r.size - n + i)
	}
	return out
}

func (r *Ring[T]) Clear() {
	r.head = 0
	r.size = 0
}
