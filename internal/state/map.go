package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gezibash/arc-ledger/internal/codec"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
)

// Map is a keyed collection stored under a common prefix.
type Map[K, V any] struct {
	prefix []byte
	keys   KeyCodec[K]
}

// NewMap declares a map stored under prefix. The prefix should end with a
// separator so that it is not a prefix of any other map's.
func NewMap[K, V any](prefix string, keys KeyCodec[K]) Map[K, V] {
	return Map[K, V]{prefix: []byte(prefix), keys: keys}
}

// Prefix returns the storage prefix.
func (m Map[K, V]) Prefix() []byte {
	return m.prefix
}

func (m Map[K, V]) key(k K) []byte {
	enc := m.keys.Encode(k)
	out := make([]byte, 0, len(m.prefix)+len(enc))
	out = append(out, m.prefix...)
	return append(out, enc...)
}

// Get returns the value for k and whether it exists.
func (m Map[K, V]) Get(tx *Tx, k K) (V, bool, error) {
	var out V
	raw, err := tx.txn.Get(m.key(k))
	if errors.Is(err, physical.ErrNotFound) {
		return out, false, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("state get %s: %w", m.prefix, err)
	}
	if err := codec.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("state get %s: %w", m.prefix, err)
	}
	return out, true, nil
}

// Contains reports whether k has a value.
func (m Map[K, V]) Contains(tx *Tx, k K) (bool, error) {
	_, err := tx.txn.Get(m.key(k))
	if errors.Is(err, physical.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state get %s: %w", m.prefix, err)
	}
	return true, nil
}

// Insert stores v under k, replacing any existing value.
func (m Map[K, V]) Insert(tx *Tx, k K, v V) error {
	raw, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("state insert %s: %w", m.prefix, err)
	}
	if err := tx.txn.Set(m.key(k), raw); err != nil {
		return fmt.Errorf("state insert %s: %w", m.prefix, err)
	}
	return nil
}

// Remove deletes k. Removing an absent key is not an error.
func (m Map[K, V]) Remove(tx *Tx, k K) error {
	if err := tx.txn.Delete(m.key(k)); err != nil {
		return fmt.Errorf("state remove %s: %w", m.prefix, err)
	}
	return nil
}

// Mutate reads the value for k (zero value and exists=false when absent),
// applies fn, and stores the result. Nothing is written when fn fails.
func (m Map[K, V]) Mutate(tx *Tx, k K, fn func(v *V, exists bool) error) error {
	cur, ok, err := m.Get(tx, k)
	if err != nil {
		return err
	}
	if err := fn(&cur, ok); err != nil {
		return err
	}
	return m.Insert(tx, k, cur)
}

// Iterate calls fn for every entry in key order.
func (m Map[K, V]) Iterate(tx *Tx, fn func(K, V) error) error {
	return m.IterateFrom(tx, nil, fn)
}

// IterateFrom calls fn, in key order, for every entry whose encoded key starts
// with keyPrefix.
func (m Map[K, V]) IterateFrom(tx *Tx, keyPrefix []byte, fn func(K, V) error) error {
	prefix := append(bytes.Clone(m.prefix), keyPrefix...)
	return tx.txn.Iterate(prefix, func(raw, value []byte) error {
		k, err := m.keys.Decode(raw[len(m.prefix):])
		if err != nil {
			return fmt.Errorf("state iterate %s: %w", m.prefix, err)
		}
		var v V
		if err := codec.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("state iterate %s: %w", m.prefix, err)
		}
		return fn(k, v)
	})
}
