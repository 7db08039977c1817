package batching

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Consumer.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopRequested
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateStopRequested:
		return "STOP_REQUESTED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Consumer drains a Queue in fixed time windows on its own goroutine.
type Consumer[T any] struct {
	state  atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewConsumer creates a consumer in StateInit.
func NewConsumer[T any]() *Consumer[T] {
	return &Consumer[T]{stopCh: make(chan struct{})}
}

// Run starts the batching goroutine. Only the first call has an effect.
// onBatch is never called with an empty batch.
func (c *Consumer[T]) Run(q *Queue[T], window time.Duration, onBatch func([]T)) {
	if !c.state.CompareAndSwap(int32(StateInit), int32(StateRunning)) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.state.Store(int32(StateStopped))
		c.loop(q, window, onBatch)
	}()
}

func (c *Consumer[T]) loop(q *Queue[T], window time.Duration, onBatch func([]T)) {
	timer := time.NewTimer(window)
	timer.Stop()
	defer timer.Stop()

	for c.State() == StateRunning {
		active := q.WaitForItems()
		if c.State() == StateStopRequested {
			return
		}
		if active {
			timer.Reset(window)
			select {
			case <-timer.C:
			case <-c.stopCh:
				return
			}
		}
		if c.State() == StateStopRequested {
			return
		}
		if items := q.Flush(); len(items) > 0 {
			onBatch(items)
		}
		if !active {
			// Deactivated without a stop request: the queue is drained
			// and can never fill again.
			return
		}
	}
}

// RequestStop asks the consumer to exit. Pending items are dropped.
func (c *Consumer[T]) RequestStop() {
	c.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))
	c.once.Do(func() { close(c.stopCh) })
}

// WaitStopped blocks until the batching goroutine has exited. It returns
// immediately if Run was never called.
func (c *Consumer[T]) WaitStopped() {
	c.wg.Wait()
}

// State returns the current lifecycle state.
func (c *Consumer[T]) State() State {
	return State(c.state.Load())
}
