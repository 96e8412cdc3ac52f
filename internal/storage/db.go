// Package storage provides transactional key-value storage abstractions.
//
// Every public engine operation runs inside a single Update transaction:
// either every Put/Delete in the transaction commits, or an error return
// discards all of them. This is the mechanism behind the engine's
// all-or-nothing call semantics.
package storage

import "errors"

// ErrNotFound is returned by Tx.Get for missing keys.
var ErrNotFound = errors.New("storage: key not found")

// Tx is a single transaction over the key-value store. Writes are staged
// and become visible to subsequent reads within the same transaction.
type Tx interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
}

// DB is the interface for transactional key-value storage.
type DB interface {
	// View runs fn in a read-only transaction.
	View(fn func(tx Tx) error) error
	// Update runs fn in a read-write transaction. If fn returns an error,
	// all staged writes are discarded.
	Update(fn func(tx Tx) error) error
	Close() error
}
