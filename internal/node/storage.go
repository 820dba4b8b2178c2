// Package node assembles a ledger node from configuration.
package node

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/genesis"
	"github.com/gezibash/arc-ledger/internal/observability"
	"github.com/gezibash/arc-ledger/internal/snapshot"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"

	// Register state backends
	_ "github.com/gezibash/arc-ledger/internal/statestore/physical/badger"
	_ "github.com/gezibash/arc-ledger/internal/statestore/physical/memory"
	_ "github.com/gezibash/arc-ledger/internal/statestore/physical/sqlite"
)

// OpenBackend creates the state backend named by cfg.
func OpenBackend(ctx context.Context, cfg *config.BackendConfig, metrics *observability.Metrics) (physical.Backend, error) {
	backend, err := physical.New(ctx, cfg.Backend, cfg.Config, metrics)
	if err != nil {
		return nil, fmt.Errorf("create state backend: %w", err)
	}
	return backend, nil
}

// LoadGenesis reads the configured genesis file, or returns the default
// document for the configured chain id when none is set.
func LoadGenesis(cfg config.GenesisConfig) (*genesis.File, error) {
	if cfg.File == "" {
		return genesis.Default(cfg.ChainID), nil
	}
	return genesis.Load(cfg.File)
}

// OpenSnapshotStore opens the configured snapshot store.
func OpenSnapshotStore(ctx context.Context, cfg *config.SnapshotConfig) (snapshot.Store, error) {
	store, err := snapshot.Open(ctx, cfg.Store, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return store, nil
}

// ExportSnapshot writes a snapshot of backend to store and returns the name
// it was stored under.
func ExportSnapshot(ctx context.Context, backend physical.Backend, store snapshot.Store) (string, *snapshot.Manifest, error) {
	var buf bytes.Buffer
	m, err := snapshot.Export(ctx, backend, &buf)
	if err != nil {
		return "", nil, err
	}
	name := snapshot.Name(m)
	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return "", nil, fmt.Errorf("store snapshot %s: %w", name, err)
	}
	return name, m, nil
}

// RestoreSnapshot loads the named snapshot from store into backend, which
// must be empty.
func RestoreSnapshot(ctx context.Context, backend physical.Backend, store snapshot.Store, name string) (*snapshot.Manifest, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", name, err)
	}
	return snapshot.Restore(ctx, backend, bytes.NewReader(data))
}
