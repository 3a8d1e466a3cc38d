// Package catalog provides read-only inventory lookups for the cart engine.
//
// A Lookup answers "what is item X right now". Static serves a fixed item
// set, File loads one from a YAML or CUE document, and Watcher reloads a File
// whenever the document changes on disk so the cart can be reconciled
// against fresh balances.
package catalog
