// Package factory creates asset classes backed by an escrowed deposit held in
// a derived custody account that the creator controls through delegation.
package factory

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/pkg/balance"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// ErrFailedToCreateClass wraps a registration failure in the class registry.
var ErrFailedToCreateClass = errors.New("failed to create class")

// Currency is the balance collaborator.
type Currency interface {
	Transfer(tx *state.Tx, from, to identity.AccountID, amount balance.Amount) error
	Reserve(tx *state.Tx, who identity.AccountID, amount balance.Amount) error
	FreeBalance(tx *state.Tx, who identity.AccountID) (balance.Amount, error)
}

// Delegations is the delegation collaborator.
type Delegations interface {
	AddDelegate(tx *state.Tx, owner, delegate identity.AccountID, kind delegation.Kind, delay uint64) error
}

// Classes is the asset-class collaborator.
type Classes interface {
	NextClassID(tx *state.Tx) (assetclass.ClassID, error)
	CreateClass(tx *state.Tx, owner identity.AccountID, metadata []byte, data assetclass.Data) (assetclass.ClassID, error)
}

// Config holds the factory parameters.
type Config struct {
	ModuleID     ModuleID
	ClassDeposit balance.Amount
}

// Factory orchestrates class creation.
type Factory struct {
	cfg         Config
	currency    Currency
	delegations Delegations
	classes     Classes
}

// New creates a factory.
func New(cfg Config, currency Currency, delegations Delegations, classes Classes) *Factory {
	return &Factory{cfg: cfg, currency: currency, delegations: delegations, classes: classes}
}

// Deposit returns the amount locked per class.
func (f *Factory) Deposit() balance.Amount {
	return f.cfg.ClassDeposit
}

// Custody returns the custody account for classID.
func (f *Factory) Custody(classID assetclass.ClassID) identity.AccountID {
	return CustodyAccount(f.cfg.ModuleID, classID)
}

// CreateClass funds a fresh custody account from creator with the class
// deposit, locks everything it holds, delegates it to creator, and registers
// a class owned by it. Either every step takes effect or none does.
func (f *Factory) CreateClass(tx *state.Tx, creator identity.AccountID, metadata []byte, props assetclass.Properties) (identity.AccountID, assetclass.ClassID, error) {
	var (
		custody identity.AccountID
		classID assetclass.ClassID
	)
	err := tx.Scope(func(tx *state.Tx) error {
		deposit := f.cfg.ClassDeposit

		next, err := f.classes.NextClassID(tx)
		if err != nil {
			return err
		}
		owner := CustodyAccount(f.cfg.ModuleID, next)

		if err := f.currency.Transfer(tx, creator, owner, deposit); err != nil {
			return err
		}
		free, err := f.currency.FreeBalance(tx, owner)
		if err != nil {
			return err
		}
		if err := f.currency.Reserve(tx, owner, free); err != nil {
			return err
		}

		if err := f.delegations.AddDelegate(tx, owner, creator, delegation.KindAny, 0); err != nil {
			return err
		}

		id, err := f.classes.CreateClass(tx, owner, metadata, assetclass.Data{Deposit: deposit, Properties: props})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToCreateClass, err)
		}
		if id != next {
			return fmt.Errorf("%w: registry assigned %d, custody derived for %d", ErrFailedToCreateClass, id, next)
		}

		tx.Emit(event.ClassCreated(owner, id))
		custody, classID = owner, id
		return nil
	})
	if err != nil {
		return identity.AccountID{}, 0, fmt.Errorf("create class: %w", err)
	}
	return custody, classID, nil
}

// ModuleID names the module that custody accounts are derived from.
type ModuleID [8]byte

// ParseModuleID accepts exactly eight bytes of text.
func ParseModuleID(s string) (ModuleID, error) {
	var id ModuleID
	if len(s) != len(id) {
		return id, fmt.Errorf("module id %q must be %d bytes: %w", s, len(id), arcerrors.ErrInvalidInput)
	}
	copy(id[:], s)
	return id, nil
}

// String returns the module id as text.
func (m ModuleID) String() string {
	return string(m[:])
}

var custodyTag = [4]byte{'m', 'o', 'd', 'l'}

// CustodyAccount derives the custody account for classID as
// "modl" || module id || classID (little-endian), zero-padded to 32 bytes.
// Distinct class ids always yield distinct accounts.
func CustodyAccount(module ModuleID, classID assetclass.ClassID) identity.AccountID {
	var out identity.AccountID
	n := copy(out[:], custodyTag[:])
	n += copy(out[n:], module[:])
	binary.LittleEndian.PutUint64(out[n:], classID)
	return out
}
