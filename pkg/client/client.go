// Package client is a Go client for a running ledger node.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/internal/origin"
	"github.com/gezibash/arc-ledger/pkg/api"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// ErrCallFailed is returned by Submit when the call was accepted, consumed
// the signer's nonce, and then failed.
var ErrCallFailed = errors.New("call failed")

// CallError carries the receipt of a failed call.
type CallError struct {
	Receipt *ledger.Receipt
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Receipt.Kind, e.Receipt.ID, e.Receipt.Error)
}

func (e *CallError) Unwrap() error { return ErrCallFailed }

type Client struct {
	conn   *grpc.ClientConn
	stub   api.LedgerClient
	health grpc_health_v1.HealthClient

	mu      sync.Mutex
	chainID string
}

type clientConfig struct {
	chainID  string
	dialOpts []grpc.DialOption
}

// Option configures client behavior.
type Option func(*clientConfig)

// WithChainID pins the chain id calls are signed for. Without it the client
// asks the node once.
func WithChainID(id string) Option {
	return func(c *clientConfig) { c.chainID = id }
}

// WithDialOptions appends gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *clientConfig) { c.dialOpts = append(c.dialOpts, opts...) }
}

func Dial(addr string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	dialOpts = append(dialOpts, cfg.dialOpts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		stub:    api.NewLedgerClient(conn),
		health:  grpc_health_v1.NewHealthClient(conn),
		chainID: cfg.chainID,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Conn returns the underlying connection.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Ping measures round-trip latency to the node and reports whether it is
// serving.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	resp, err := c.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return time.Since(start), err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return time.Since(start), fmt.Errorf("node is %s", resp.GetStatus())
	}
	return time.Since(start), nil
}

func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	return c.stub.Status(ctx, &api.StatusRequest{})
}

// ChainID returns the chain the node serves.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != "" {
		return c.chainID, nil
	}
	st, err := c.Status(ctx)
	if err != nil {
		return "", err
	}
	c.chainID = st.ChainID
	return c.chainID, nil
}

func (c *Client) Account(ctx context.Context, who identity.AccountID) (*api.AccountResponse, error) {
	return c.stub.Account(ctx, &api.AccountRequest{Account: who})
}

// Submit signs call with the signer's next nonce and submits it. A call
// that ran and failed returns its receipt together with a *CallError.
func (c *Client) Submit(ctx context.Context, signer identity.Signer, call ledger.Call) (*ledger.Receipt, error) {
	encoded, err := call.Encode()
	if err != nil {
		return nil, err
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	acct, err := c.Account(ctx, identity.AccountFromPublicKey(signer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	sc, err := origin.Sign(signer, chainID, acct.Nonce, encoded)
	if err != nil {
		return nil, err
	}
	resp, err := c.stub.Submit(ctx, &api.SubmitRequest{Call: sc})
	if err != nil {
		return nil, err
	}
	receipt := &resp.Receipt
	if !receipt.OK() {
		return receipt, &CallError{Receipt: receipt}
	}
	return receipt, nil
}

func (c *Client) CreateGuild(ctx context.Context, signer identity.Signer, name []byte) (*ledger.Receipt, error) {
	return c.Submit(ctx, signer, ledger.CreateGuild(name))
}

func (c *Client) UpdateGuild(ctx context.Context, signer identity.Signer, id guild.ID, update guild.Update) (*ledger.Receipt, error) {
	return c.Submit(ctx, signer, ledger.UpdateGuild(id, update))
}

func (c *Client) CreateClass(ctx context.Context, signer identity.Signer, metadata []byte, props assetclass.Properties) (*ledger.Receipt, error) {
	return c.Submit(ctx, signer, ledger.CreateClass(metadata, props))
}

func (c *Client) RemoveDelegate(ctx context.Context, signer identity.Signer, owner, delegate identity.AccountID, kind delegation.Kind, delay uint64) (*ledger.Receipt, error) {
	return c.Submit(ctx, signer, ledger.RemoveDelegate(owner, delegate, kind, delay))
}

func (c *Client) Transfer(ctx context.Context, signer identity.Signer, to identity.AccountID, amount balance.Amount) (*ledger.Receipt, error) {
	return c.Submit(ctx, signer, ledger.Transfer(to, amount))
}

func (c *Client) Guild(ctx context.Context, owner identity.AccountID) (guild.Guild, error) {
	resp, err := c.stub.Guild(ctx, &api.GuildRequest{Owner: owner})
	if err != nil {
		return guild.Guild{}, err
	}
	return resp.Guild, nil
}

func (c *Client) Class(ctx context.Context, id assetclass.ClassID) (*api.ClassResponse, error) {
	return c.stub.Class(ctx, &api.ClassRequest{ClassID: id})
}

func (c *Client) ClassesOwnedBy(ctx context.Context, owner identity.AccountID) ([]assetclass.ClassID, error) {
	resp, err := c.stub.ClassesOwnedBy(ctx, &api.ClassesOwnedByRequest{Owner: owner})
	if err != nil {
		return nil, err
	}
	return resp.ClassIDs, nil
}

func (c *Client) Delegates(ctx context.Context, owner identity.AccountID) ([]delegation.Delegation, error) {
	resp, err := c.stub.Delegates(ctx, &api.DelegatesRequest{Owner: owner})
	if err != nil {
		return nil, err
	}
	return resp.Delegations, nil
}

// EventsOptions selects journal records.
type EventsOptions struct {
	From   uint64
	Limit  int
	Filter string
}

func (c *Client) Events(ctx context.Context, opts *EventsOptions) (*api.EventsResponse, error) {
	req := &api.EventsRequest{}
	if opts != nil {
		req.From, req.Limit, req.Filter = opts.From, opts.Limit, opts.Filter
	}
	return c.stub.Events(ctx, req)
}

// SubscribeOptions configures a record stream.
type SubscribeOptions struct {
	Filter string
	// Replay sends journaled records from From before live ones.
	Replay bool
	From   uint64
}

// Subscribe streams committed records. The error channel receives the
// reason the stream ended.
func (c *Client) Subscribe(ctx context.Context, opts *SubscribeOptions) (<-chan journal.Record, <-chan error, error) {
	req := &api.SubscribeRequest{}
	if opts != nil {
		req.Filter, req.Replay, req.From = opts.Filter, opts.Replay, opts.From
	}
	stream, err := c.stub.Subscribe(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	records := make(chan journal.Record)
	errs := make(chan error, 1)

	go func() {
		defer close(records)
		defer close(errs)
		for {
			r, err := stream.Recv()
			if err != nil {
				errs <- err
				return
			}
			select {
			case records <- *r:
			case <-ctx.Done():
				return
			}
		}
	}()

	return records, errs, nil
}
