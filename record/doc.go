// Package record defines the opaque record model of the virtual-table engine.
//
// A Record is a typed key-value document. The engine never interprets record
// fields itself; every access goes through a caller-supplied Schema, which
// provides the grouping-key accessor, the identity accessor and the default
// row used by the trailing empty partition.
//
// String values are interned via Go 1.24's unique package, which keeps the
// memory cost of large, repetitive tables low.
package record
