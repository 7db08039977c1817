// Package timer runs callbacks at fixed intervals.
//
// A [RecurrentTimer] owns any number of registrations, each with its own
// interval. Callbacks run on timer goroutines without the timer's lock
// held, so they may register or unregister other callbacks. A callback
// that is in flight when it is unregistered completes, but is not
// rescheduled.
package timer
