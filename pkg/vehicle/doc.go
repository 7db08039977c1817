// Package vehicle defines the data model shared by every layer of the
// vehicle property HAL: property identifiers, values, configurations,
// subscription options and the status codes returned to clients.
//
// # Property identifiers
//
// A property ID packs four fields into one int32:
//
//	bits 28..31  group  (SYSTEM, VENDOR)
//	bits 24..27  area   (GLOBAL, WINDOW, MIRROR, SEAT, DOOR, WHEEL)
//	bits 16..23  type   (STRING, BOOLEAN, INT32, INT32_VEC, ...)
//	bits  0..15  unique identifier
//
// Use [PropertyTypeOf] and [IsGlobalProperty] to decode them.
//
// # Areas
//
// Area masks are bitsets of area IDs. The value 0 ([AllAreas]) is a
// wildcard that matches every area of a property.
//
// # Callbacks
//
// [Callback] is the contract a HAL client implements to receive events,
// set notifications, set errors and asynchronous get/set results.
package vehicle
