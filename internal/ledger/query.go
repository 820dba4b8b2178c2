package ledger

import (
	"context"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/currency"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/factory"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// view runs fn against a read-only snapshot. Queries do not take the
// dispatch lock.
func (l *Ledger) view(ctx context.Context, fn func(*state.Tx) error) error {
	return physical.View(ctx, l.backend, func(txn physical.Txn) error {
		return fn(state.NewTx(ctx, txn))
	})
}

// ChainID returns the chain id stored in state, or "" before Init.
func (l *Ledger) ChainID(ctx context.Context) (chain string, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		chain, err = l.chain.Get(tx)
		return err
	})
	return chain, err
}

// Account returns the balances of who.
func (l *Ledger) Account(ctx context.Context, who identity.AccountID) (acct currency.Account, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		acct, err = l.currency.Account(tx, who)
		return err
	})
	return acct, err
}

// TotalIssuance returns the sum of all deposits.
func (l *Ledger) TotalIssuance(ctx context.Context) (total balance.Amount, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		total, err = l.currency.TotalIssuance(tx)
		return err
	})
	return total, err
}

// Guild returns the guild owned by owner.
func (l *Ledger) Guild(ctx context.Context, owner identity.AccountID) (g guild.Guild, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		g, err = l.guilds.Guild(tx, owner)
		return err
	})
	return g, err
}

// NextGuildID returns the id the next guild will get.
func (l *Ledger) NextGuildID(ctx context.Context) (id guild.ID, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		id, err = l.guilds.NextGuildID(tx)
		return err
	})
	return id, err
}

// Class returns the class record for id.
func (l *Ledger) Class(ctx context.Context, id assetclass.ClassID) (info assetclass.Info, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		info, err = l.classes.Class(tx, id)
		return err
	})
	return info, err
}

// ClassesOwnedBy returns the ids of classes owned by owner.
func (l *Ledger) ClassesOwnedBy(ctx context.Context, owner identity.AccountID) (ids []assetclass.ClassID, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		ids, err = l.classes.ClassesOwnedBy(tx, owner)
		return err
	})
	return ids, err
}

// NextClassID returns the id the next class will get.
func (l *Ledger) NextClassID(ctx context.Context) (id assetclass.ClassID, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		id, err = l.classes.NextClassID(tx)
		return err
	})
	return id, err
}

// Params returns the chain parameters pinned in state, or ErrNotInitialized
// before Init.
func (l *Ledger) Params(ctx context.Context) (p Params, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		ok, err := l.params.Exists(tx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotInitialized
		}
		p, err = l.params.Get(tx)
		return err
	})
	return p, err
}

// Custody returns the custody account backing classID, derived from the
// pinned module id.
func (l *Ledger) Custody(ctx context.Context, classID assetclass.ClassID) (identity.AccountID, error) {
	p, err := l.Params(ctx)
	if err != nil {
		return identity.AccountID{}, err
	}
	return factory.CustodyAccount(p.ModuleID, classID), nil
}

// Delegates returns the delegations granted by owner.
func (l *Ledger) Delegates(ctx context.Context, owner identity.AccountID) (list []delegation.Delegation, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		list, err = l.delegations.Delegates(tx, owner)
		return err
	})
	return list, err
}

// Nonce returns the next nonce expected from who.
func (l *Ledger) Nonce(ctx context.Context, who identity.AccountID) (n uint64, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		n, err = l.verifier.Nonce(tx, who)
		return err
	})
	return n, err
}

// Events returns journal records selected by q.
func (l *Ledger) Events(ctx context.Context, q journal.Query) (page journal.Page, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		page, err = l.journal.Query(tx, q)
		return err
	})
	return page, err
}

// Head returns the sequence number the next record will get.
func (l *Ledger) Head(ctx context.Context) (seq uint64, err error) {
	err = l.view(ctx, func(tx *state.Tx) error {
		seq, err = l.journal.Next(tx)
		return err
	})
	return seq, err
}

// Stats returns backend statistics.
func (l *Ledger) Stats(ctx context.Context) (*physical.Stats, error) {
	return l.backend.Stats(ctx)
}
