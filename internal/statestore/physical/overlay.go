package physical

import (
	"bytes"
	"slices"
	"sort"
)

// Write is one buffered mutation. A nil Value marks a delete.
type Write struct {
	Key   []byte
	Value []byte
}

// Overlay is a Txn that buffers writes in memory on top of a Reader and hands
// them, sorted by key, to a flush function on Commit. It gives backends
// without native transactions read-your-writes isolation, and gives callers
// nested scopes inside an enclosing transaction.
type Overlay struct {
	parent  Reader
	flush   func([]Write) error
	release func()
	writes  map[string][]byte
	done    bool
}

// NewOverlay buffers writes over parent. flush receives the writes on Commit;
// release, if non-nil, runs exactly once when the overlay finishes.
func NewOverlay(parent Reader, flush func([]Write) error, release func()) *Overlay {
	return &Overlay{
		parent:  parent,
		flush:   flush,
		release: release,
		writes:  make(map[string][]byte),
	}
}

// Get returns the buffered value for key, falling back to the parent.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	if o.done {
		return nil, ErrTxnDone
	}
	if v, ok := o.writes[string(key)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return slices.Clone(v), nil
	}
	return o.parent.Get(key)
}

// Set buffers a write.
func (o *Overlay) Set(key, value []byte) error {
	if o.done {
		return ErrTxnDone
	}
	if value == nil {
		value = []byte{}
	}
	o.writes[string(key)] = slices.Clone(value)
	return nil
}

// Delete buffers a delete.
func (o *Overlay) Delete(key []byte) error {
	if o.done {
		return ErrTxnDone
	}
	o.writes[string(key)] = nil
	return nil
}

// Iterate merges the parent's keys with the buffered writes.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if o.done {
		return ErrTxnDone
	}

	merged := make(map[string][]byte)
	err := o.parent.Iterate(prefix, func(k, v []byte) error {
		merged[string(k)] = slices.Clone(v)
		return nil
	})
	if err != nil {
		return err
	}
	for k, v := range o.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), slices.Clone(merged[k])); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of buffered writes.
func (o *Overlay) Len() int {
	return len(o.writes)
}

// Commit flushes the buffered writes in key order.
func (o *Overlay) Commit() error {
	if o.done {
		return ErrTxnDone
	}
	defer o.finish()

	writes := make([]Write, 0, len(o.writes))
	for k, v := range o.writes {
		writes = append(writes, Write{Key: []byte(k), Value: v})
	}
	sort.Slice(writes, func(i, j int) bool {
		return bytes.Compare(writes[i].Key, writes[j].Key) < 0
	})
	if len(writes) == 0 || o.flush == nil {
		return nil
	}
	return o.flush(writes)
}

// Discard drops the buffered writes.
func (o *Overlay) Discard() {
	if o.done {
		return
	}
	o.finish()
}

func (o *Overlay) finish() {
	o.done = true
	if o.release != nil {
		o.release()
	}
}

// ApplyTo writes each buffered mutation into txn. It is the flush function
// used for nested scopes.
func ApplyTo(txn Txn) func([]Write) error {
	return func(writes []Write) error {
		for _, w := range writes {
			var err error
			if w.Value == nil {
				err = txn.Delete(w.Key)
			} else {
				err = txn.Set(w.Key, w.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
}
