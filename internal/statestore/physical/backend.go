// Package physical provides the transactional key-value interface that ledger
// state is persisted through, and the registry of named backends.
package physical

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the key has no value.
	ErrNotFound = errors.New("key not found")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("backend closed")

	// ErrReadOnly indicates a write through a read-only transaction.
	ErrReadOnly = errors.New("read-only transaction")

	// ErrTxnDone indicates a transaction was used after Commit or Discard.
	ErrTxnDone = errors.New("transaction already finished")

	// ErrConflict indicates a concurrent writer committed first; retry the transaction.
	ErrConflict = errors.New("transaction conflict")
)

// Reader is the read half of a transaction.
type Reader interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls fn for every key with the given prefix in ascending
	// byte order. Returning an error from fn stops the iteration.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Txn is a scoped transaction. Writes are invisible to other transactions
// until Commit; Discard drops them. Discard after Commit is a no-op so callers
// can always defer it.
type Txn interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Discard()
}

// Stats contains storage statistics.
type Stats struct {
	Keys        int64
	SizeBytes   int64
	BackendType string
}

// Backend is the persistent keyed storage. All implementations must be
// thread-safe; at most one read-write transaction is expected at a time.
type Backend interface {
	// Begin opens a transaction. update selects a read-write transaction.
	Begin(ctx context.Context, update bool) (Txn, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// View runs fn in a read-only transaction.
func View(ctx context.Context, b Backend, fn func(Txn) error) error {
	txn, err := b.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer txn.Discard()
	return fn(txn)
}

// Update runs fn in a read-write transaction, committing when fn returns nil
// and discarding otherwise.
func Update(ctx context.Context, b Backend, fn func(Txn) error) error {
	txn, err := b.Begin(ctx, true)
	if err != nil {
		return err
	}
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
