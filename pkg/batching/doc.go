// Package batching coalesces high-rate events into time-windowed batches.
//
// A [Queue] is a concurrent FIFO that many producers push into. A
// [Consumer] runs in its own goroutine, waits for items, sleeps for the
// batching window so more items can accumulate, then drains the queue and
// hands the whole batch to a callback.
//
// # Lifecycle
//
// The consumer moves INIT -> RUNNING -> STOP_REQUESTED -> STOPPED. A stop
// request does not wake a consumer blocked on an empty queue; the owner
// deactivates the queue after requesting the stop:
//
//	consumer.RequestStop()
//	queue.Deactivate()
//	consumer.WaitStopped()
//
// Items still queued when a stop is observed are not delivered.
package batching
