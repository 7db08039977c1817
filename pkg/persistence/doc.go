// Package persistence stores property values across daemon restarts.
//
// A [ValueSnapshot] is written as indented JSON. Loading a missing file
// yields no snapshot and no error, so a first start needs no special
// casing.
package persistence
