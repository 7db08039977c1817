// Package objpool recycles property value objects on the hot event path.
//
// Values are pooled per (type, vector size). Strings, MIXED values and
// vectors longer than [Config.MaxRecyclableVectorSize] are disposable:
// they are allocated fresh and dropped on release.
//
// A [Recyclable] must be released exactly once. Releasing twice is a no-op.
package objpool
