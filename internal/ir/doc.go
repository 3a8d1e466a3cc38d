// Package ir defines the durable cart data model shared by every toolbox package.
//
// This package contains type definitions, derived-field computation and validation
// only. All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Derived totals (TotalItems, TotalValue) are recomputed, never trusted from input
//   - At most one CartLine per catalog item id within a cart
//   - Monetary values are int64 minor units, never floats
//   - All JSON tags use snake_case
package ir
