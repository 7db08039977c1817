// Package log provides structured event logging for the vehicle HAL.
//
// It records what crosses the manager's boundaries: hardware event
// batches, client subscriptions, asynchronous requests, lifecycle changes
// and errors. It is separate from operational logging (slog); the event
// log is a machine-readable trace for debugging and offline analysis.
//
// # Basic Usage
//
//	// Console output during development
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary file for later analysis with vhal-log
//	fl, _ := log.NewFileLogger("/var/log/vhal/events.vlog")
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Property: value batches (events, gets, sets, set errors)
//   - Subscription: client and hardware subscription changes
//   - Request: asynchronous get/set requests and timeouts
//   - StateChange: manager, client and hardware lifecycle
//   - Error: failures at any layer
//
// # File Format
//
// Log files are a plain concatenation of CBOR-encoded events. The vhal-log
// tool views, filters and summarizes them.
package log
