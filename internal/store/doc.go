// Package store keeps a SQLite manifest of generation runs.
//
// Each run records the command that produced it, the digest of the snapshot
// it read, every stub file it wrote with that file's content digest, and
// every pass that failed. The manifest answers "which pass produced this
// file" without re-running anything.
//
// # Ordering
//
// Runs are ordered by seq, a logical counter assigned on insert, never by
// wall time. Stub and failure rows are returned in path and subject order
// so that two identical runs read back identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
