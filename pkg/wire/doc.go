// Package wire encodes HAL callback traffic as CBOR so it can cross a
// process boundary or be recorded to disk.
//
// Every [vehicle.Callback] invocation maps to one [Message]. Messages
// use integer map keys and canonical key order. On a byte stream each
// message is carried in a frame with a 4-byte big-endian length prefix.
//
// [StreamCallback] is a vehicle.Callback that writes frames to an
// io.Writer; [StreamReader] reads them back and [Dispatch] replays a
// decoded message into another callback.
package wire
