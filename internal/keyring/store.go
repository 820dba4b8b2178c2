package keyring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gezibash/arc-ledger/pkg/identity/ed25519"
)

type keyringFile struct {
	Version int               `json:"version"`
	Default string            `json:"default,omitempty"`
	Aliases map[string]string `json:"aliases"`
}

func (kr *Keyring) keysDir() string {
	return filepath.Join(kr.dir, "keys")
}

func (kr *Keyring) keyringFilePath() string {
	return filepath.Join(kr.dir, "keyring.json")
}

func (kr *Keyring) keyPath(acct string) string {
	return filepath.Join(kr.keysDir(), normalize(acct)+".key")
}

func (kr *Keyring) metaPath(acct string) string {
	return filepath.Join(kr.keysDir(), normalize(acct)+".json")
}

func (kr *Keyring) keyExists(acct string) bool {
	_, err := os.Stat(kr.keyPath(acct))
	return err == nil
}

func (kr *Keyring) saveKey(kp *ed25519.Keypair, acct string, meta *Metadata) error {
	acct = normalize(acct)

	if err := os.MkdirAll(kr.keysDir(), 0o700); err != nil {
		return fmt.Errorf("create keys directory: %w", err)
	}

	keyPath := kr.keyPath(acct)
	metaPath := kr.metaPath(acct)

	if err := os.WriteFile(keyPath, kp.Seed(), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(keyPath)
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if err := os.WriteFile(metaPath, metaJSON, 0o600); err != nil {
		_ = os.Remove(keyPath)
		return fmt.Errorf("write metadata file: %w", err)
	}

	return nil
}

func (kr *Keyring) loadKey(acct string) (*ed25519.Keypair, *Metadata, error) {
	acct = normalize(acct)

	seed, err := os.ReadFile(kr.keyPath(acct))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("read key file: %w", err)
	}

	kp, err := ed25519.FromSeed(seed)
	if err != nil {
		return nil, nil, fmt.Errorf("create keypair from seed: %w", err)
	}
	if got := accountHex(kp); got != acct {
		return nil, nil, fmt.Errorf("key file %s holds account %s", acct, got)
	}

	var meta *Metadata
	metaJSON, err := os.ReadFile(kr.metaPath(acct))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("read metadata file: %w", err)
		}
		meta = newMetadata(kp)
		meta.CreatedAt = time.Time{}
	} else {
		meta = &Metadata{}
		if err := json.Unmarshal(metaJSON, meta); err != nil {
			return nil, nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return kp, meta, nil
}

func (kr *Keyring) deleteKeyFiles(acct string) error {
	acct = normalize(acct)
	if err := os.Remove(kr.keyPath(acct)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete key file: %w", err)
	}
	_ = os.Remove(kr.metaPath(acct))
	return nil
}

func (kr *Keyring) listKeyFiles() ([]string, error) {
	entries, err := os.ReadDir(kr.keysDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read keys directory: %w", err)
	}

	var accts []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		accts = append(accts, strings.TrimSuffix(entry.Name(), ".key"))
	}
	return accts, nil
}

func (kr *Keyring) loadKeyringFile() (*keyringFile, error) {
	data, err := os.ReadFile(kr.keyringFilePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read keyring file: %w", err)
	}

	kf := &keyringFile{}
	if err := json.Unmarshal(data, kf); err != nil {
		return nil, fmt.Errorf("parse keyring file: %w", err)
	}

	if kf.Aliases == nil {
		kf.Aliases = make(map[string]string)
	}

	for alias, acct := range kf.Aliases {
		kf.Aliases[alias] = normalize(acct)
	}

	return kf, nil
}

func (kr *Keyring) saveKeyringFile(kf *keyringFile) error {
	if err := os.MkdirAll(kr.dir, 0o700); err != nil {
		return fmt.Errorf("create keyring directory: %w", err)
	}

	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keyring file: %w", err)
	}

	if err := os.WriteFile(kr.keyringFilePath(), data, 0o600); err != nil {
		return fmt.Errorf("write keyring file: %w", err)
	}

	return nil
}
