// Package hal implements the vehicle property HAL manager.
//
// The [Manager] sits between HAL clients and a [Hardware] implementation.
// Clients register a [vehicle.Callback] and receive a ClientID, then use
// it to subscribe, read and write properties.
//
// # Event path
//
// The hardware reports events through [EventSink]. Events are queued,
// batched in fixed windows (10ms by default) by a background consumer,
// grouped per subscribed client and delivered in one OnPropertyEvent call
// per client and batch.
//
// # Subscriptions
//
// Subscribe validates options against the property configuration, clamps
// continuous sample rates into [min, max] and forces on-change rates to
// zero. Only subscriptions that change what the hardware has to produce
// are forwarded to it.
//
// # Asynchronous requests
//
// GetValues and SetValues answer through the client callback. Each
// accepted request is tracked by a pending pool; requests the hardware
// does not answer within Config.RequestTimeout are answered with
// TRY_AGAIN.
//
// # Shutdown
//
// Close stops the batching consumer, drops queued events, stops the
// heartbeat and flushes pending requests. Operations on a closed manager
// fail with ILLEGAL_STATE.
package hal
