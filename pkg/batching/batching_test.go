package batching

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.PushAll([]int{2, 3})

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{1, 2, 3}, q.Flush())
	assert.Empty(t, q.Flush())
}

func TestQueueDeactivate(t *testing.T) {
	q := NewQueue[string]()

	done := make(chan bool)
	go func() { done <- q.WaitForItems() }()

	q.Deactivate()
	select {
	case active := <-done:
		assert.False(t, active)
	case <-time.After(time.Second):
		t.Fatal("WaitForItems did not return after Deactivate")
	}

	assert.False(t, q.Push("late"))
	assert.False(t, q.PushAll([]string{"later"}))
	assert.Equal(t, 0, q.Len())
}

func TestWaitForItemsReturnsWhenNonEmpty(t *testing.T) {
	q := NewQueue[int]()
	q.Push(7)
	assert.True(t, q.WaitForItems())
}

// TestConsumerDeliversEveryItemOnce pushes from several producers and
// checks that each item arrives exactly once with per-producer order kept.
func TestConsumerDeliversEveryItemOnce(t *testing.T) {
	type item struct{ producer, seq int }
	const producers, perProducer = 4, 250

	q := NewQueue[item]()
	c := NewConsumer[item]()

	var mu sync.Mutex
	var got []item
	c.Run(q, 2*time.Millisecond, func(batch []item) {
		mu.Lock()
		got = append(got, batch...)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(item{producer: p, seq: i})
			}
		}(p)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == producers*perProducer
	}, 5*time.Second, 5*time.Millisecond)

	c.RequestStop()
	q.Deactivate()
	c.WaitStopped()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	mu.Lock()
	defer mu.Unlock()
	for _, it := range got {
		if it.seq != last[it.producer]+1 {
			t.Fatalf("producer %d: got seq %d after %d", it.producer, it.seq, last[it.producer])
		}
		last[it.producer] = it.seq
	}
	assert.Equal(t, StateStopped, c.State())
}

func TestConsumerBatchesWithinWindow(t *testing.T) {
	q := NewQueue[int]()
	c := NewConsumer[int]()
	batches := make(chan []int, 4)

	c.Run(q, 100*time.Millisecond, func(b []int) { batches <- b })
	q.PushAll([]int{1, 2})
	q.Push(3)

	select {
	case b := <-batches:
		assert.Equal(t, []int{1, 2, 3}, b)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch delivered")
	}

	c.RequestStop()
	q.Deactivate()
	c.WaitStopped()
}

func TestConsumerStopDropsPending(t *testing.T) {
	q := NewQueue[int]()
	c := NewConsumer[int]()
	called := make(chan struct{}, 1)

	c.Run(q, 500*time.Millisecond, func([]int) { called <- struct{}{} })
	q.Push(1)

	c.RequestStop()
	q.Deactivate()
	c.WaitStopped()

	select {
	case <-called:
		t.Fatal("onBatch called after stop request")
	default:
	}
	assert.Equal(t, StateStopped, c.State())
}

func TestConsumerDrainsDeactivatedQueue(t *testing.T) {
	q := NewQueue[int]()
	q.PushAll([]int{4, 5})
	q.Deactivate()

	var got []int
	c := NewConsumer[int]()
	c.Run(q, time.Hour, func(b []int) { got = append(got, b...) })
	c.WaitStopped()

	assert.Equal(t, []int{4, 5}, got)
}

func TestConsumerRunOnce(t *testing.T) {
	q := NewQueue[int]()
	c := NewConsumer[int]()
	c.WaitStopped() // not started: must not block

	c.Run(q, time.Millisecond, func([]int) {})
	c.Run(q, time.Millisecond, func([]int) { t.Error("second Run must be ignored") })
	q.Push(1)

	c.RequestStop()
	q.Deactivate()
	c.WaitStopped()
}
