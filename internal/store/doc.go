// Package store provides the persistent cart store for one device.
//
// A Store owns three records in a kv.Backend:
//   - cart.active: the current CartState
//   - cart.metadata: provenance of the active cart (CartMetadata)
//   - cart.history: up to HistoryLimit prior snapshots, most recent first
//
// # Invariants
//
// Derived totals are recomputed on every save and never trusted from input.
//
// Expiry is lazy: a cart whose last_updated is older than the TTL is deleted
// the next time it is loaded, never by a background timer.
//
// Every successful save prepends a snapshot to history whose session id
// carries the "history_" prefix, so snapshots never collide with a live
// session. Restoring a snapshot always starts a fresh session.
//
// Storage that cannot accept writes is detected with a probe before any
// write and reported as ErrStorageUnavailable; malformed stored records are
// logged and treated as absent. No method panics on bad storage.
//
// Subscribers registered with Subscribe are notified after every successful
// mutation, outside the store lock.
package store
