package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Field string
	Value float64
}

func TestQueue_PushDrain(t *testing.T) {
	q := New[sample](0)
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())

	q.Push(sample{"height", 10})
	q.Push(sample{"height", 20}, sample{"speed", 3})
	assert.Equal(t, 3, q.Len())

	batch := q.Drain()
	assert.Equal(t, []sample{{"height", 10}, {"height", 20}, {"speed", 3}}, batch)
	assert.Zero(t, q.Len())

	q.Push(sample{"flyTime", 1})
	assert.Equal(t, sample{"height", 10}, batch[0], "drained batch must not be reused")
}

func TestQueue_Restore(t *testing.T) {
	q := New[int](0)
	q.Push(1, 2)
	batch := q.Drain()
	q.Push(3)

	q.Restore(batch)
	q.Restore(nil)
	assert.Equal(t, []int{1, 2, 3}, q.Drain())
}

func TestQueue_Limit(t *testing.T) {
	q := New[int](3)
	q.Push(1, 2, 3, 4)
	assert.Equal(t, 1, q.Dropped())

	batch := q.Drain()
	assert.Equal(t, []int{2, 3, 4}, batch)

	q.Push(5, 6)
	q.Restore(batch)
	assert.Equal(t, []int{4, 5, 6}, q.Drain())
	assert.Equal(t, 3, q.Dropped())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int](0)
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q.Push(w*100 + j)
			}
		}()
	}

	total := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			total += len(q.Drain())
			assert.Equal(t, 800, total)
			return
		default:
			total += len(q.Drain())
		}
	}
}
