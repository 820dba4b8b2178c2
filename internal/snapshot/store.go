package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/gezibash/arc-ledger/internal/storage"
)

// Store keeps exported snapshots by name.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	// Get returns the snapshot stored under name, or errors.ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns stored snapshot names in ascending order.
	List(ctx context.Context) ([]string, error)
}

// Factory opens a store from its options.
type Factory func(ctx context.Context, opts storage.Options) (Store, error)

type registration struct {
	factory  Factory
	defaults func() map[string]string
}

var stores = map[string]registration{
	"fs": {factory: newFSFactory, defaults: FSDefaults},
	"s3": {factory: newS3Factory, defaults: S3Defaults},
}

// Stores lists the available store names.
func Stores() []string {
	names := make([]string, 0, len(stores))
	for name := range stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the default options of the named store.
func Defaults(name string) map[string]string {
	if reg, ok := stores[name]; ok {
		return reg.defaults()
	}
	return nil
}

// Open opens the named store with config merged over its defaults.
func Open(ctx context.Context, name string, config map[string]string) (Store, error) {
	reg, ok := stores[name]
	if !ok {
		return nil, fmt.Errorf("unknown snapshot store %q (available: %v)", name, Stores())
	}
	return reg.factory(ctx, storage.NewOptions(name, reg.defaults(), config))
}
