// Package keyring stores Ed25519 signing keys on disk, indexed by the ledger
// account they control, with optional aliases and a default key.
package keyring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gezibash/arc-ledger/pkg/identity"
	"github.com/gezibash/arc-ledger/pkg/identity/ed25519"
)

const (
	DefaultAlias     = "default"
	AccountHexLength = 2 * identity.AccountIDSize
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrAliasNotFound = errors.New("alias not found")
	ErrAlreadyExists = errors.New("key already exists")
	ErrNoDefault     = errors.New("no default key set")
)

type Keyring struct {
	dir string
}

type Key struct {
	Keypair  *ed25519.Keypair
	Account  string // hex-encoded account id
	Metadata *Metadata
}

type Metadata struct {
	Account   string    `json:"account"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

type KeyInfo struct {
	Account   string    `json:"account" yaml:"account"`
	PublicKey string    `json:"public_key" yaml:"public_key"`
	Aliases   []string  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	IsDefault bool      `json:"is_default" yaml:"is_default"`
}

func New(dir string) *Keyring {
	return &Keyring{dir: dir}
}

func accountHex(kp *ed25519.Keypair) string {
	return kp.Account().String()
}

func newMetadata(kp *ed25519.Keypair) *Metadata {
	return &Metadata{
		Account:   accountHex(kp),
		PublicKey: identity.EncodePublicKey(kp.PublicKey()),
		CreatedAt: time.Now(),
	}
}

func (kr *Keyring) Generate(_ context.Context, alias string) (*Key, error) {
	kp, err := ed25519.Generate()
	if err != nil {
		return nil, err
	}

	acct := accountHex(kp)
	if kr.keyExists(acct) {
		return nil, ErrAlreadyExists
	}
	return kr.store(kp, alias)
}

func (kr *Keyring) Import(_ context.Context, seed []byte, alias string) (*Key, error) {
	kp, err := ed25519.FromSeed(seed)
	if err != nil {
		return nil, err
	}
	return kr.store(kp, alias)
}

func (kr *Keyring) store(kp *ed25519.Keypair, alias string) (*Key, error) {
	acct := accountHex(kp)
	meta := newMetadata(kp)

	if err := kr.saveKey(kp, acct, meta); err != nil {
		return nil, err
	}

	if alias != "" {
		if err := kr.SetAlias(alias, acct); err != nil {
			_ = kr.deleteKeyFiles(acct)
			return nil, err
		}
	}

	return &Key{Keypair: kp, Account: acct, Metadata: meta}, nil
}

func (kr *Keyring) Load(_ context.Context, nameOrID string) (*Key, error) {
	acct, err := kr.resolveToAccount(nameOrID)
	if err != nil {
		return nil, err
	}

	kp, meta, err := kr.loadKey(acct)
	if err != nil {
		return nil, err
	}

	return &Key{Keypair: kp, Account: acct, Metadata: meta}, nil
}

// LoadFile reads a raw 32-byte seed from path, outside the keyring.
func LoadFile(path string) (*Key, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	kp, err := ed25519.FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return &Key{Keypair: kp, Account: accountHex(kp), Metadata: newMetadata(kp)}, nil
}

func (kr *Keyring) LoadDefault(ctx context.Context) (*Key, error) {
	kf, err := kr.loadKeyringFile()
	if err != nil {
		return nil, err
	}

	if kf.Default == "" {
		return nil, ErrNoDefault
	}

	return kr.Load(ctx, kf.Default)
}

func (kr *Keyring) LoadOrGenerate(ctx context.Context, alias string) (*Key, error) {
	key, err := kr.Load(ctx, alias)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAliasNotFound) {
		return nil, err
	}
	return kr.Generate(ctx, alias)
}

func (kr *Keyring) List(_ context.Context) ([]*KeyInfo, error) {
	kf, err := kr.loadKeyringFile()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	aliasMap := make(map[string][]string)
	if kf != nil {
		for alias, acct := range kf.Aliases {
			aliasMap[acct] = append(aliasMap[acct], alias)
		}
	}

	accts, err := kr.listKeyFiles()
	if err != nil {
		return nil, err
	}

	var defaultAcct string
	if kf != nil && kf.Default != "" {
		defaultAcct, _ = kr.resolveAliasToAccount(kf.Default, kf)
	}

	infos := make([]*KeyInfo, 0, len(accts))
	for _, acct := range accts {
		_, meta, err := kr.loadKey(acct)
		if err != nil {
			continue
		}
		infos = append(infos, &KeyInfo{
			Account:   acct,
			PublicKey: meta.PublicKey,
			Aliases:   aliasMap[acct],
			CreatedAt: meta.CreatedAt,
			IsDefault: acct == defaultAcct,
		})
	}

	return infos, nil
}

func (kr *Keyring) Delete(_ context.Context, nameOrID string) error {
	acct, err := kr.resolveToAccount(nameOrID)
	if err != nil {
		return err
	}

	kf, err := kr.loadKeyringFile()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if kf != nil {
		changed := false
		for alias, id := range kf.Aliases {
			if id == acct {
				delete(kf.Aliases, alias)
				changed = true
			}
		}
		if kf.Default != "" {
			defaultAcct, _ := kr.resolveAliasToAccount(kf.Default, kf)
			if defaultAcct == acct || defaultAcct == "" {
				kf.Default = ""
				changed = true
			}
		}
		if changed {
			if err := kr.saveKeyringFile(kf); err != nil {
				return err
			}
		}
	}

	return kr.deleteKeyFiles(acct)
}

func (kr *Keyring) SetAlias(alias, acct string) error {
	acct = normalize(acct)

	if !kr.keyExists(acct) {
		return ErrNotFound
	}

	kf, err := kr.loadKeyringFile()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		kf = &keyringFile{Version: 1, Aliases: make(map[string]string)}
	}

	kf.Aliases[alias] = acct
	return kr.saveKeyringFile(kf)
}

func (kr *Keyring) SetDefault(alias string) error {
	kf, err := kr.loadKeyringFile()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		kf = &keyringFile{Version: 1, Aliases: make(map[string]string)}
	}

	if _, ok := kf.Aliases[alias]; !ok {
		return ErrAliasNotFound
	}

	kf.Default = alias
	return kr.saveKeyringFile(kf)
}

func (kr *Keyring) resolveToAccount(nameOrID string) (string, error) {
	acct := normalize(nameOrID)

	if isAccountHex(acct) && kr.keyExists(acct) {
		return acct, nil
	}

	kf, err := kr.loadKeyringFile()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrAliasNotFound
		}
		return "", err
	}

	return kr.resolveAliasToAccount(nameOrID, kf)
}

func (kr *Keyring) resolveAliasToAccount(nameOrID string, kf *keyringFile) (string, error) {
	if acct, ok := kf.Aliases[nameOrID]; ok {
		if kr.keyExists(acct) {
			return acct, nil
		}
		return "", ErrNotFound
	}

	acct := normalize(nameOrID)
	if isAccountHex(acct) && kr.keyExists(acct) {
		return acct, nil
	}

	return "", ErrAliasNotFound
}

func isAccountHex(s string) bool {
	return len(s) == AccountHexLength && isHex(s)
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
