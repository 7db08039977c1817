package timer

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Timer errors.
var (
	ErrTimerNotFound   = errors.New("timer not found")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrStopped         = errors.New("timer stopped")
)

// ID identifies a registration.
type ID uint64

// Registration describes an active callback.
type Registration struct {
	ID       ID
	Interval time.Duration
	Fired    uint64
}

type entry struct {
	id       ID
	interval time.Duration
	fn       func()
	timer    *time.Timer
	next     time.Time // scheduled fire time, guarded by RecurrentTimer.mu
	fired    atomic.Uint64
}

// RecurrentTimer schedules repeating callbacks.
type RecurrentTimer struct {
	mu      sync.Mutex
	entries map[ID]*entry
	nextID  ID
	stopped bool
}

// New creates a RecurrentTimer.
func New() *RecurrentTimer {
	return &RecurrentTimer{entries: make(map[ID]*entry)}
}

// Register schedules fn every interval, starting one interval from now.
// Fire times stay on that grid however long fn runs.
func (t *RecurrentTimer) Register(interval time.Duration, fn func()) (ID, error) {
	if interval <= 0 || fn == nil {
		return 0, ErrInvalidInterval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return 0, ErrStopped
	}
	t.nextID++
	e := &entry{id: t.nextID, interval: interval, fn: fn, next: time.Now().Add(interval)}
	e.timer = time.AfterFunc(interval, func() { t.fire(e) })
	t.entries[e.id] = e
	return e.id, nil
}

// Unregister cancels a registration.
func (t *RecurrentTimer) Unregister(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return ErrTimerNotFound
	}
	e.timer.Stop()
	delete(t.entries, id)
	return nil
}

// Registrations returns a snapshot of the active registrations.
func (t *RecurrentTimer) Registrations() []Registration {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Registration, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, Registration{ID: e.id, Interval: e.interval, Fired: e.fired.Load()})
	}
	return out
}

// Count returns the number of active registrations.
func (t *RecurrentTimer) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stop cancels every registration. Later Register calls fail.
func (t *RecurrentTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for id, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, id)
	}
}

func (t *RecurrentTimer) fire(e *entry) {
	t.mu.Lock()
	if t.entries[e.id] != e {
		t.mu.Unlock()
		return
	}
	fn := e.fn
	t.mu.Unlock()

	// Call callback outside lock
	fn()
	e.fired.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[e.id] == e {
		now := time.Now()
		e.next = nextDeadline(e.next, now, e.interval)
		e.timer.Reset(e.next.Sub(now))
	}
}

// nextDeadline returns the first tick after prev, on the prev+k*interval
// grid, that is later than now. Ticks missed by a slow callback are
// skipped rather than fired in a burst.
func nextDeadline(prev, now time.Time, interval time.Duration) time.Time {
	next := prev.Add(interval)
	if next.After(now) {
		return next
	}
	missed := now.Sub(next)/interval + 1
	return next.Add(missed * interval)
}
