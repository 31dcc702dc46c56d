// Package ir provides the declaration tree that stub generation builds and
// the canonical text serialization of that tree.
//
// This package contains data types and pure operations only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// tree the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - One namespace node per qualified name within a tree (reopen, never duplicate)
//   - Methods are keyed by (name, kind, visibility); re-adding a key is a no-op
//   - Serialized order never depends on insertion order
//   - A tree belongs to exactly one generation pass
package ir
