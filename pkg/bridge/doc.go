// Package bridge forwards HAL property traffic to an MQTT broker.
//
// A [Bridge] registers with a hal.Manager as an ordinary client. Every
// delivered event is published to <prefix>/<property id in hex>, set
// errors to <prefix>/errors. When the publisher can also subscribe, JSON
// property values received on <prefix>/set are forwarded to the manager as
// asynchronous set requests and their results are published to
// <prefix>/results.
//
// Payloads are CBOR by default; JSON is available for tooling that cannot
// decode CBOR.
package bridge
