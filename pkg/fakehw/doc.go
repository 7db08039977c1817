// Package fakehw provides an in-memory vehicle hardware for the HAL
// manager.
//
// Values are kept per (property, area) and seeded from property
// declarations. A successful Set stores the value and, when it differs
// from the stored one, reports it as an on-change event. Subscribing to a
// continuous property starts a generator that re-reports the current
// value with a fresh timestamp at the subscribed rate.
//
// Tests and the debug shell can inject events and set errors.
package fakehw
