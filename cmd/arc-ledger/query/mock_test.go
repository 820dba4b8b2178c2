package query

import (
	"context"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/pkg/api"
	"github.com/gezibash/arc-ledger/pkg/client"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

type mockClient struct {
	accountFn   func(ctx context.Context, who identity.AccountID) (*api.AccountResponse, error)
	guildFn     func(ctx context.Context, owner identity.AccountID) (guild.Guild, error)
	classFn     func(ctx context.Context, id assetclass.ClassID) (*api.ClassResponse, error)
	classesFn   func(ctx context.Context, owner identity.AccountID) ([]assetclass.ClassID, error)
	delegatesFn func(ctx context.Context, owner identity.AccountID) ([]delegation.Delegation, error)
	eventsFn    func(ctx context.Context, opts *client.EventsOptions) (*api.EventsResponse, error)
	subscribeFn func(ctx context.Context, opts *client.SubscribeOptions) (<-chan journal.Record, <-chan error, error)
	closed      bool
}

func (m *mockClient) Account(ctx context.Context, who identity.AccountID) (*api.AccountResponse, error) {
	return m.accountFn(ctx, who)
}

func (m *mockClient) Guild(ctx context.Context, owner identity.AccountID) (guild.Guild, error) {
	return m.guildFn(ctx, owner)
}

func (m *mockClient) Class(ctx context.Context, id assetclass.ClassID) (*api.ClassResponse, error) {
	return m.classFn(ctx, id)
}

func (m *mockClient) ClassesOwnedBy(ctx context.Context, owner identity.AccountID) ([]assetclass.ClassID, error) {
	return m.classesFn(ctx, owner)
}

func (m *mockClient) Delegates(ctx context.Context, owner identity.AccountID) ([]delegation.Delegation, error) {
	return m.delegatesFn(ctx, owner)
}

func (m *mockClient) Events(ctx context.Context, opts *client.EventsOptions) (*api.EventsResponse, error) {
	return m.eventsFn(ctx, opts)
}

func (m *mockClient) Subscribe(ctx context.Context, opts *client.SubscribeOptions) (<-chan journal.Record, <-chan error, error) {
	return m.subscribeFn(ctx, opts)
}

func (m *mockClient) Close() error {
	m.closed = true
	return nil
}
