// Package engine implements cart reconciliation: it applies add, update and
// remove requests against current availability and persists the result
// through the store.
//
// ARCHITECTURE:
//
// Single-Writer Mutations:
// Every mutating operation runs under one mutex, so each load-modify-save
// sequence completes before the next begins. This gives one total order of
// mutations per device.
//
// Result Objects:
// Nothing crosses the engine boundary as an error or a panic. Mutations
// return a Result; queries return zero values (nil cart, empty history) and
// log the underlying failure.
//
// Partial Fulfillment:
// Adding to an existing line that would exceed the item's balance is
// clamped to what remains and reported as a success with a warning.
package engine
