// Package badger provides a BadgerDB-backed state store backend.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/gezibash/arc-ledger/internal/statestore/physical"
	"github.com/gezibash/arc-ledger/internal/storage"
)

const (
	KeyPath             = "path"
	KeySyncWrites       = "sync_writes"
	KeyValueLogFileSize = "value_log_file_size"
	KeyMemTableSize     = "mem_table_size"
	KeyInMemory         = "in_memory"
)

func init() {
	physical.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:             "~/.arc-ledger/state",
		KeySyncWrites:       "true",
		KeyValueLogFileSize: strconv.FormatInt(1<<30, 10),
		KeyMemTableSize:     strconv.FormatInt(64<<20, 10),
		KeyInMemory:         "false",
	}
}

// NewFactory creates a new BadgerDB backend from configuration options.
func NewFactory(_ context.Context, opts storage.Options) (physical.Backend, error) {
	inMemory, err := opts.Bool(KeyInMemory, false)
	if err != nil {
		return nil, err
	}
	if inMemory {
		return NewInMemory()
	}

	path := opts.Path(KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("badger", KeyPath, "cannot be empty")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to create directory", err)
	}

	syncWrites, err := opts.Bool(KeySyncWrites, true)
	if err != nil {
		return nil, err
	}
	valueLogFileSize, err := opts.Int64(KeyValueLogFileSize, 1<<30)
	if err != nil {
		return nil, err
	}
	memTableSize, err := opts.Int64(KeyMemTableSize, 64<<20)
	if err != nil {
		return nil, err
	}

	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil
	bopts.SyncWrites = syncWrites
	if valueLogFileSize > 0 {
		bopts.ValueLogFileSize = valueLogFileSize
	}
	if memTableSize > 0 {
		bopts.MemTableSize = memTableSize
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyPath, "failed to open database", err)
	}

	slog.Info("badger statestore initialized", "path", path, "sync_writes", syncWrites)
	return NewWithDB(db), nil
}

// NewInMemory opens a BadgerDB instance that lives only in memory.
func NewInMemory() (*Backend, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("badger", KeyInMemory, "failed to open in-memory database", err)
	}

	slog.Info("badger statestore initialized (in-memory)")
	return NewWithDB(db), nil
}

// Backend is a BadgerDB implementation of physical.Backend.
type Backend struct {
	db     *badger.DB
	closed atomic.Bool
}

// NewWithDB creates a new backend with an existing BadgerDB instance.
func NewWithDB(db *badger.DB) *Backend {
	return &Backend{db: db}
}

// Begin opens a native Badger transaction.
func (b *Backend) Begin(ctx context.Context, update bool) (physical.Txn, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &txn{txn: b.db.NewTransaction(update), update: update}, nil
}

// Stats returns key count and on-disk size.
func (b *Backend) Stats(_ context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var keys int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger stats: %w", err)
	}

	lsm, vlog := b.db.Size()
	return &physical.Stats{Keys: keys, SizeBytes: lsm + vlog, BackendType: "badger"}, nil
}

// RunGC runs value log garbage collection until nothing is rewritten.
func (b *Backend) RunGC(discardRatio float64) error {
	if b.closed.Load() {
		return physical.ErrClosed
	}
	for {
		if err := b.db.RunValueLogGC(discardRatio); err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				return nil
			}
			return err
		}
	}
}

// Close closes the database.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

type txn struct {
	txn    *badger.Txn
	update bool
	done   bool
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, physical.ErrTxnDone
	}
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, physical.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return item.ValueCopy(nil)
}

func (t *txn) Set(key, value []byte) error {
	if t.done {
		return physical.ErrTxnDone
	}
	if !t.update {
		return physical.ErrReadOnly
	}
	// Badger holds the slices until commit.
	return t.txn.Set(slices.Clone(key), slices.Clone(value))
}

func (t *txn) Delete(key []byte) error {
	if t.done {
		return physical.ErrTxnDone
	}
	if !t.update {
		return physical.ErrReadOnly
	}
	return t.txn.Delete(slices.Clone(key))
}

func (t *txn) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if t.done {
		return physical.ErrTxnDone
	}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("badger iterate: %w", err)
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Commit() error {
	if t.done {
		return physical.ErrTxnDone
	}
	t.done = true
	if err := t.txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("badger commit: %w", physical.ErrConflict)
		}
		return fmt.Errorf("badger commit: %w", err)
	}
	return nil
}

func (t *txn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
}
