// Package state provides typed storage handles over a physical transaction
// and the per-call transaction context that buffers emitted events.
package state

import (
	"context"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
)

// Tx is the storage and event context of one call. It is not safe for
// concurrent use.
type Tx struct {
	ctx    context.Context
	txn    physical.Txn
	events *event.Buffer
}

// NewTx binds a physical transaction. The caller owns txn and decides whether
// to commit it.
func NewTx(ctx context.Context, txn physical.Txn) *Tx {
	return &Tx{ctx: ctx, txn: txn, events: &event.Buffer{}}
}

// Context returns the context the transaction was opened with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Txn returns the underlying transaction.
func (tx *Tx) Txn() physical.Txn {
	return tx.txn
}

// Emit buffers an event. It is dropped if the enclosing scope fails.
func (tx *Tx) Emit(e event.Event) {
	tx.events.Emit(e)
}

// Events returns the events buffered so far.
func (tx *Tx) Events() []event.Event {
	return tx.events.Events()
}

// Scope runs fn against a savepoint. When fn fails, every write and event
// made inside the scope is rolled back and the enclosing transaction is left
// as it was; otherwise they are folded into it.
func (tx *Tx) Scope(fn func(*Tx) error) error {
	if err := tx.ctx.Err(); err != nil {
		return err
	}

	overlay := physical.NewOverlay(tx.txn, physical.ApplyTo(tx.txn), nil)
	mark := tx.events.Len()
	inner := &Tx{ctx: tx.ctx, txn: overlay, events: tx.events}

	if err := fn(inner); err != nil {
		overlay.Discard()
		tx.events.Truncate(mark)
		return err
	}
	if err := overlay.Commit(); err != nil {
		tx.events.Truncate(mark)
		return err
	}
	return nil
}

var _ event.Sink = (*Tx)(nil)
