package webui

import "sync"

// CircularBuffer is a thread-safe, fixed-size buffer that overwrites the
// oldest entry when full.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int
	size     int
	head     int // next write index
	tail     int // oldest element
}

// NewCircularBuffer creates a buffer holding up to capacity elements.
// Panics if capacity is less than 1.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		panic("CircularBuffer capacity must be at least 1")
	}
	return &CircularBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Push adds an element, overwriting the oldest one when full.
func (b *CircularBuffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	} else {
		b.tail = (b.tail + 1) % b.capacity
	}
}

// GetAll returns a copy of the contents, oldest first.
func (b *CircularBuffer[T]) GetAll() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		result[i] = b.data[(b.tail+i)%b.capacity]
	}
	return result
}

// Size returns the current number of elements.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum number of elements.
func (b *CircularBuffer[T]) Capacity() int {
	return b.capacity
}

// Clear removes all elements.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.size = 0
	b.head = 0
	b.tail = 0
}
