// Package idgen generates the opaque identifiers used throughout the core:
// 128-bit entity ids (work items, actions, undo steps) and the lexicographic
// order-key strings that define sibling ordering.
package idgen

import "github.com/google/uuid"

// NewID returns a fresh opaque 128-bit identifier, rendered as its canonical
// string form. Work items, dependencies' composite keys, actions, and undo
// steps all use this for their primary identifiers.
func NewID() string {
	return uuid.New().String()
}
