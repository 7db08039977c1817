// Package pending tracks in-flight asynchronous requests per client and
// expires them after a timeout.
//
// Requests are added in groups that share one timeout callback. Results
// coming back from the hardware are matched with TryFinishRequests, which
// returns only the IDs that were still pending; anything already expired
// or never added is silently ignored. A background reaper fires the
// timeout callback for every group with unfinished IDs once its deadline
// passes. Callbacks always run without the pool lock held.
//
// Close stops the reaper and immediately flushes every pending group
// through its timeout callback.
package pending
