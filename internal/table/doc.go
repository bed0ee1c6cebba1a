// Package table manages the fixed-capacity entry table of a ZVFS container.
//
// Every lookup is a linear scan over the slots in ascending order driven by a
// single Predicate, so add, remove, list and describe classify slots the
// same way.
package table
