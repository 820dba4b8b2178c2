// Package genesis reads and writes the TOML file that fixes a chain's
// parameters and initial balances.
package genesis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/factory"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/pkg/balance"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// DefaultClassDeposit is the class deposit written by Default.
var DefaultClassDeposit = balance.New(1_000_000)

// File is a genesis document. Amounts are decimal strings so they can exceed
// 64 bits.
type File struct {
	ChainID  string    `toml:"chain_id"`
	Params   Params    `toml:"params"`
	Accounts []Account `toml:"accounts"`
}

// Params are the chain parameters.
type Params struct {
	ModuleID     string         `toml:"module_id"`
	ClassDeposit balance.Amount `toml:"class_deposit"`
	MaxMetadata  int            `toml:"max_metadata"`
	MaxDelegates int            `toml:"max_delegates"`
}

// Account is an initial balance. Account accepts a hex account id or an
// "algo:hex" public key.
type Account struct {
	Account identity.AccountID `toml:"account"`
	Balance balance.Amount     `toml:"balance"`
}

// Default returns a genesis file for chainID with default parameters and no
// accounts.
func Default(chainID string) *File {
	return &File{
		ChainID: chainID,
		Params: Params{
			ModuleID:     ledger.DefaultModuleID.String(),
			ClassDeposit: DefaultClassDeposit,
			MaxMetadata:  assetclass.DefaultMaxMetadata,
			MaxDelegates: delegation.DefaultMaxDelegates,
		},
	}
}

// Load reads and validates a genesis file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a genesis document.
func Parse(data []byte) (*File, error) {
	var f File
	meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("genesis: unknown keys %s: %w", strings.Join(keys, ", "), arcerrors.ErrInvalidInput)
	}
	if !meta.IsDefined("params", "module_id") {
		f.Params.ModuleID = ledger.DefaultModuleID.String()
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the document for consistency.
func (f *File) Validate() error {
	if strings.TrimSpace(f.ChainID) == "" {
		return fmt.Errorf("genesis: chain_id is required: %w", arcerrors.ErrInvalidInput)
	}
	if _, err := factory.ParseModuleID(f.Params.ModuleID); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if f.Params.MaxMetadata < 0 || f.Params.MaxDelegates < 0 {
		return fmt.Errorf("genesis: limits must be non-negative: %w", arcerrors.ErrInvalidInput)
	}

	seen := make(map[identity.AccountID]bool, len(f.Accounts))
	total := balance.Zero
	for i, a := range f.Accounts {
		if a.Account.IsZero() {
			return fmt.Errorf("genesis: accounts[%d]: account is required: %w", i, arcerrors.ErrInvalidInput)
		}
		if seen[a.Account] {
			return fmt.Errorf("genesis: accounts[%d]: duplicate account %s: %w", i, a.Account, arcerrors.ErrAlreadyExists)
		}
		seen[a.Account] = true

		var err error
		if total, err = total.Add(a.Balance); err != nil {
			return fmt.Errorf("genesis: total issuance: %w", err)
		}
	}
	return nil
}

// LedgerConfig returns the ledger configuration the file describes.
func (f *File) LedgerConfig() (ledger.Config, error) {
	module, err := factory.ParseModuleID(f.Params.ModuleID)
	if err != nil {
		return ledger.Config{}, err
	}
	return ledger.Config{
		ChainID:      f.ChainID,
		ModuleID:     module,
		ClassDeposit: f.Params.ClassDeposit,
		MaxMetadata:  f.Params.MaxMetadata,
		MaxDelegates: f.Params.MaxDelegates,
	}, nil
}

// Endowments returns the initial balances.
func (f *File) Endowments() []ledger.Endowment {
	out := make([]ledger.Endowment, 0, len(f.Accounts))
	for _, a := range f.Accounts {
		out = append(out, ledger.Endowment{Account: a.Account, Amount: a.Balance})
	}
	return out
}

// Apply initializes l with the file's endowments.
func (f *File) Apply(ctx context.Context, l *ledger.Ledger) error {
	if l.Config().ChainID != f.ChainID {
		return fmt.Errorf("genesis for %q applied to %q: %w", f.ChainID, l.Config().ChainID, ledger.ErrChainMismatch)
	}
	return l.Init(ctx, f.Endowments())
}

// Write encodes the file as TOML.
func (f *File) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}
