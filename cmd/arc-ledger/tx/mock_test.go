package tx

import (
	"context"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

type mockClient struct {
	createGuildFn    func(ctx context.Context, name []byte) (*ledger.Receipt, error)
	updateGuildFn    func(ctx context.Context, id guild.ID, update guild.Update) (*ledger.Receipt, error)
	createClassFn    func(ctx context.Context, metadata []byte, props assetclass.Properties) (*ledger.Receipt, error)
	removeDelegateFn func(ctx context.Context, owner, delegate identity.AccountID, kind delegation.Kind, delay uint64) (*ledger.Receipt, error)
	transferFn       func(ctx context.Context, to identity.AccountID, amount balance.Amount) (*ledger.Receipt, error)
	closed           bool
}

func (m *mockClient) CreateGuild(ctx context.Context, _ identity.Signer, name []byte) (*ledger.Receipt, error) {
	return m.createGuildFn(ctx, name)
}

func (m *mockClient) UpdateGuild(ctx context.Context, _ identity.Signer, id guild.ID, update guild.Update) (*ledger.Receipt, error) {
	return m.updateGuildFn(ctx, id, update)
}

func (m *mockClient) CreateClass(ctx context.Context, _ identity.Signer, metadata []byte, props assetclass.Properties) (*ledger.Receipt, error) {
	return m.createClassFn(ctx, metadata, props)
}

func (m *mockClient) RemoveDelegate(ctx context.Context, _ identity.Signer, owner, delegate identity.AccountID, kind delegation.Kind, delay uint64) (*ledger.Receipt, error) {
	return m.removeDelegateFn(ctx, owner, delegate, kind, delay)
}

func (m *mockClient) Transfer(ctx context.Context, _ identity.Signer, to identity.AccountID, amount balance.Amount) (*ledger.Receipt, error) {
	return m.transferFn(ctx, to, amount)
}

func (m *mockClient) Close() error {
	m.closed = true
	return nil
}
