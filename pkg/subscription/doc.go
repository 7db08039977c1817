// Package subscription tracks which clients are subscribed to which
// vehicle properties and derives the subscription the hardware must
// serve.
//
// # Per-client state
//
// Each [HalClient] keeps one [vehicle.SubscribeOptions] per property. A
// repeated subscription for the same property is merged into the
// existing one with [MergeSubscribeOptions].
//
// # Hardware-facing state
//
// For every property with at least one HAL_EVENT subscriber the manager
// stores the merged options across all clients. AddOrUpdateSubscription
// returns the entries of that table that actually changed, which is the
// set of subscriptions the caller has to push to the hardware.
//
// # Merge rule
//
//	area:  union, where AllAreas (0) absorbs everything
//	rate:  maximum
//	flags: bitwise OR
//
// A merge counts as a change only if the rate strictly increased or the
// area mask or flags differ from the old value.
//
// # Fan-out
//
// DistributeValuesToClients groups a batch of events by recipient,
// preserving the order in which recipients are first encountered.
package subscription
