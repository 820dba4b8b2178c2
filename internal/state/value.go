package state

import (
	"errors"
	"fmt"

	"github.com/gezibash/arc-ledger/internal/codec"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
)

// Value is a single stored item with a default used when nothing is stored.
type Value[T any] struct {
	key []byte
	def T
}

// NewValue declares a value stored under key.
func NewValue[T any](key string, def T) Value[T] {
	return Value[T]{key: []byte(key), def: def}
}

// Key returns the storage key.
func (v Value[T]) Key() []byte {
	return v.key
}

// Get returns the stored value, or the default when absent.
func (v Value[T]) Get(tx *Tx) (T, error) {
	raw, err := tx.txn.Get(v.key)
	if errors.Is(err, physical.ErrNotFound) {
		return v.def, nil
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("state get %s: %w", v.key, err)
	}
	var out T
	if err := codec.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("state get %s: %w", v.key, err)
	}
	return out, nil
}

// Exists reports whether a value is stored.
func (v Value[T]) Exists(tx *Tx) (bool, error) {
	_, err := tx.txn.Get(v.key)
	if errors.Is(err, physical.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state get %s: %w", v.key, err)
	}
	return true, nil
}

// Put stores val.
func (v Value[T]) Put(tx *Tx, val T) error {
	raw, err := codec.Marshal(val)
	if err != nil {
		return fmt.Errorf("state put %s: %w", v.key, err)
	}
	if err := tx.txn.Set(v.key, raw); err != nil {
		return fmt.Errorf("state put %s: %w", v.key, err)
	}
	return nil
}

// Mutate reads the value (or default), applies fn, and stores the result.
// Nothing is written when fn fails.
func (v Value[T]) Mutate(tx *Tx, fn func(*T) error) error {
	cur, err := v.Get(tx)
	if err != nil {
		return err
	}
	if err := fn(&cur); err != nil {
		return err
	}
	return v.Put(tx, cur)
}

// Kill removes the stored value so Get returns the default again.
func (v Value[T]) Kill(tx *Tx) error {
	if err := tx.txn.Delete(v.key); err != nil {
		return fmt.Errorf("state delete %s: %w", v.key, err)
	}
	return nil
}
