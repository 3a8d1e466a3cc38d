// Package kv provides the durable key-value storage a cart store is written to.
//
// It plays the role browser local storage plays for a web front-end: a small,
// device-scoped, synchronous key-value space. Three backends are provided:
//   - SQLite: default on-disk backend (WAL mode, single writer)
//   - Badger: embedded LSM backend, on-disk or in-memory
//   - Memory: in-process map, used for degraded in-memory operation and tests
//
// Every backend reports missing keys as ErrNotFound and storage that cannot
// accept writes as ErrUnavailable, so callers can degrade instead of failing hard.
package kv
