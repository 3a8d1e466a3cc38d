// Package harness runs cart scenarios: scripted sequences of cart operations
// with expected outcomes, executed against a real engine and store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: partial_fulfillment
//	description: "Adding past the balance is clamped"
//	policy: trust
//	catalog:
//	  - id: A
//	    balance: 5
//	    status: in-stock
//	steps:
//	  - op: add
//	    item: A
//	    quantity: 3
//	  - op: add
//	    item: A
//	    quantity: 4
//	    expect:
//	      success: true
//	      warning_contains: "Only 2 added"
//	final:
//	  total_items: 5
//	  lines: { A: 5 }
//	  history_len: 2
//
// # Operations
//
//   - add, update, remove: item mutations (update needs quantity)
//   - clear, checkout, context: whole-cart mutations
//   - set_stock: change an item in the scenario catalog
//   - reconcile: refresh the cart from the scenario catalog
//   - restore: restore history entry at index `history`
//   - export_import: export, check out, then import the backup
//   - advance: move the clock by `duration` ("1h", "31d")
//   - load: observe the cart (triggers TTL expiry)
//
// # Deterministic Testing
//
// Every scenario runs on a fresh in-memory backend with a fixed clock
// (testutil.FixedClock) and sequential session ids, so traces are identical
// across runs and can be compared against golden files.
package harness
