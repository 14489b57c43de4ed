// Package memory provides in-memory implementations of the storage
// ports. Used in tests and as a reference implementation of store
// semantics. Unlike the SQLite store, cross-store denormalisations
// (source doc counts, ledger references) are not maintained here.
package memory
