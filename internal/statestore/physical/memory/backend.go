// Package memory provides an in-memory state store backend for tests and
// ephemeral nodes.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gezibash/arc-ledger/internal/statestore/physical"
	"github.com/gezibash/arc-ledger/internal/storage"
)

func init() {
	physical.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() map[string]string {
	return map[string]string{}
}

// NewFactory creates a new memory backend.
func NewFactory(_ context.Context, _ storage.Options) (physical.Backend, error) {
	return New(), nil
}

// Backend is a map-backed implementation of physical.Backend. Read-write
// transactions are serialized; read-only transactions see committed data.
type Backend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writer sync.Mutex
	closed atomic.Bool
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

// Begin opens a transaction.
func (b *Backend) Begin(ctx context.Context, update bool) (physical.Txn, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !update {
		return &readTxn{b: b}, nil
	}
	b.writer.Lock()
	return physical.NewOverlay(committed{b}, b.apply, b.writer.Unlock), nil
}

func (b *Backend) apply(writes []physical.Write) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range writes {
		if w.Value == nil {
			delete(b.data, string(w.Key))
			continue
		}
		b.data[string(w.Key)] = w.Value
	}
	return nil
}

// Stats returns key count and total value size.
func (b *Backend) Stats(_ context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var size int64
	for k, v := range b.data {
		size += int64(len(k) + len(v))
	}
	return &physical.Stats{Keys: int64(len(b.data)), SizeBytes: size, BackendType: "memory"}, nil
}

// Close marks the backend closed.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

// committed reads the committed map.
type committed struct {
	b *Backend
}

func (c committed) Get(key []byte) ([]byte, error) {
	c.b.mu.RLock()
	defer c.b.mu.RUnlock()
	v, ok := c.b.data[string(key)]
	if !ok {
		return nil, physical.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (c committed) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	c.b.mu.RLock()
	type kv struct {
		k string
		v []byte
	}
	var matched []kv
	for k, v := range c.b.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			matched = append(matched, kv{k, slices.Clone(v)})
		}
	}
	c.b.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].k < matched[j].k })
	for _, e := range matched {
		if err := fn([]byte(e.k), e.v); err != nil {
			return err
		}
	}
	return nil
}

type readTxn struct {
	b    *Backend
	done bool
}

func (t *readTxn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, physical.ErrTxnDone
	}
	return committed{t.b}.Get(key)
}

func (t *readTxn) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if t.done {
		return physical.ErrTxnDone
	}
	return committed{t.b}.Iterate(prefix, fn)
}

func (t *readTxn) Set(_, _ []byte) error { return physical.ErrReadOnly }
func (t *readTxn) Delete(_ []byte) error { return physical.ErrReadOnly }
func (t *readTxn) Commit() error         { t.done = true; return nil }
func (t *readTxn) Discard()              { t.done = true }
