package webui

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircularBuffer_OverwritesOldest(t *testing.T) {
	b := NewCircularBuffer[int](3)
	assert.Empty(t, b.GetAll())

	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	assert.Equal(t, 3, b.Size())
	assert.Equal(t, 3, b.Capacity())
	assert.Equal(t, []int{3, 4, 5}, b.GetAll())
}

func TestCircularBuffer_GetAllReturnsCopy(t *testing.T) {
	b := NewCircularBuffer[string](2)
	b.Push("a")

	got := b.GetAll()
	got[0] = "mutated"

	assert.Equal(t, []string{"a"}, b.GetAll())
}

func TestCircularBuffer_Clear(t *testing.T) {
	b := NewCircularBuffer[int](2)
	b.Push(1)
	b.Push(2)
	b.Clear()

	assert.Equal(t, 0, b.Size())
	b.Push(7)
	assert.Equal(t, []int{7}, b.GetAll())
}

func TestCircularBuffer_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { NewCircularBuffer[int](0) })
}

func TestCircularBuffer_ConcurrentPush(t *testing.T) {
	b := NewCircularBuffer[int](50)
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Push(i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Size())
}
