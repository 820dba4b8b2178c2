// Package sqlite provides a SQLite-backed state store backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/gezibash/arc-ledger/internal/statestore/physical"
	"github.com/gezibash/arc-ledger/internal/storage"
)

const (
	KeyPath        = "path"
	KeyJournalMode = "journal_mode"
	KeyBusyTimeout = "busy_timeout"
	KeyCacheSize   = "cache_size"
)

func init() {
	physical.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyPath:        "~/.arc-ledger/state.db",
		KeyJournalMode: "wal",
		KeyBusyTimeout: "5000",
		KeyCacheSize:   "-64000",
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key   BLOB PRIMARY KEY,
    value BLOB NOT NULL
) WITHOUT ROWID;
`

// NewFactory creates a new SQLite backend from configuration options.
func NewFactory(_ context.Context, opts storage.Options) (physical.Backend, error) {
	path := opts.Path(KeyPath, "")
	if path == "" {
		return nil, storage.NewConfigError("sqlite", KeyPath, "cannot be empty")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to create directory", err)
		}
	}

	journalMode := opts.String(KeyJournalMode, "wal")
	busyTimeout, err := opts.Int(KeyBusyTimeout, 5000)
	if err != nil {
		return nil, err
	}
	cacheSize, err := opts.Int(KeyCacheSize, -64000)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)&_pragma=cache_size(%d)",
		path, journalMode, busyTimeout, cacheSize)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to open database", err)
	}

	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storage.NewConfigErrorWithCause("sqlite", KeyPath, "failed to initialize schema", err)
	}

	slog.Info("sqlite statestore initialized", "path", path, "journal_mode", journalMode)
	return &Backend{db: db}, nil
}

// Backend is a SQLite implementation of physical.Backend.
type Backend struct {
	db     *sql.DB
	closed atomic.Bool
}

// Begin opens a SQL transaction.
func (b *Backend) Begin(ctx context.Context, update bool) (physical.Txn, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	return &txn{ctx: ctx, tx: tx, update: update}, nil
}

// Stats returns key count and database size.
func (b *Backend) Stats(ctx context.Context) (*physical.Stats, error) {
	if b.closed.Load() {
		return nil, physical.ErrClosed
	}

	var keys, size int64
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&keys); err != nil {
		return nil, fmt.Errorf("sqlite stats: %w", err)
	}
	var pageCount, pageSize int64
	if err := b.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("sqlite stats: %w", err)
	}
	if err := b.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("sqlite stats: %w", err)
	}
	size = pageCount * pageSize

	return &physical.Stats{Keys: keys, SizeBytes: size, BackendType: "sqlite"}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

type txn struct {
	ctx    context.Context
	tx     *sql.Tx
	update bool
	done   bool
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, physical.ErrTxnDone
	}
	var value []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, physical.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (t *txn) Set(key, value []byte) error {
	if t.done {
		return physical.ErrTxnDone
	}
	if !t.update {
		return physical.ErrReadOnly
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

func (t *txn) Delete(key []byte) error {
	if t.done {
		return physical.ErrTxnDone
	}
	if !t.update {
		return physical.ErrReadOnly
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (t *txn) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if t.done {
		return physical.ErrTxnDone
	}

	var (
		rows *sql.Rows
		err  error
	)
	end := physical.PrefixEnd(prefix)
	switch {
	case len(prefix) == 0:
		rows, err = t.tx.QueryContext(t.ctx, `SELECT key, value FROM kv ORDER BY key`)
	case end == nil:
		rows, err = t.tx.QueryContext(t.ctx, `SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, prefix)
	default:
		rows, err = t.tx.QueryContext(t.ctx, `SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, prefix, end)
	}
	if err != nil {
		return fmt.Errorf("sqlite iterate: %w", err)
	}

	// Drain before calling fn so callbacks can issue their own queries.
	type kv struct{ k, v []byte }
	var matched []kv
	for rows.Next() {
		var e kv
		if err := rows.Scan(&e.k, &e.v); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite iterate: scan: %w", err)
		}
		matched = append(matched, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite iterate: %w", err)
	}
	rows.Close()

	for _, e := range matched {
		if e.v == nil {
			e.v = []byte{}
		}
		if err := fn(e.k, e.v); err != nil {
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
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func (t *txn) Discard() {
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
}
