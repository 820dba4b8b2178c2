package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gezibash/arc-ledger/internal/storage"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

// KeyPath names the directory option of the fs store.
const KeyPath = "path"

// FSDefaults returns the default options of the fs store.
func FSDefaults() map[string]string {
	return map[string]string{
		KeyPath: "~/.arc-ledger/snapshots",
	}
}

// FSStore keeps snapshots as files in one directory.
type FSStore struct {
	dir string
}

func newFSFactory(_ context.Context, opts storage.Options) (Store, error) {
	dir := opts.Path(KeyPath, "")
	if dir == "" {
		return nil, storage.NewConfigError(opts.Backend, KeyPath, "cannot be empty")
	}
	return NewFSStore(dir)
}

// NewFSStore creates dir if needed and returns a store over it.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, storage.NewConfigErrorWithCause("fs", KeyPath, "failed to create directory", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("snapshot name %q: %w", name, arcerrors.ErrInvalidInput)
	}
	return filepath.Join(s.dir, name), nil
}

// Put writes data to a temporary file and renames it into place.
func (s *FSStore) Put(_ context.Context, name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("fs put: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fs put: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fs put: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fs put: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("fs put: %w", err)
	}
	return nil
}

// Get reads a snapshot file.
func (s *FSStore) Get(_ context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", name, arcerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fs get: %w", err)
	}
	return data, nil
}

// List returns snapshot file names, skipping temporary files.
func (s *FSStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("fs list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
