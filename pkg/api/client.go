package api

import (
	"context"

	"google.golang.org/grpc"

	"github.com/gezibash/arc-ledger/internal/journal"
)

// LedgerClient is the client API for LedgerService. Every call is sent with
// the CBOR content subtype.
type LedgerClient interface {
	Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error)
	Account(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*AccountResponse, error)
	Guild(ctx context.Context, in *GuildRequest, opts ...grpc.CallOption) (*GuildResponse, error)
	Class(ctx context.Context, in *ClassRequest, opts ...grpc.CallOption) (*ClassResponse, error)
	ClassesOwnedBy(ctx context.Context, in *ClassesOwnedByRequest, opts ...grpc.CallOption) (*ClassesOwnedByResponse, error)
	Delegates(ctx context.Context, in *DelegatesRequest, opts ...grpc.CallOption) (*DelegatesResponse, error)
	Events(ctx context.Context, in *EventsRequest, opts ...grpc.CallOption) (*EventsResponse, error)
	Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (RecordReceiver, error)
}

// RecordReceiver is the client side of a Subscribe call.
type RecordReceiver interface {
	Recv() (*journal.Record, error)
	grpc.ClientStream
}

type ledgerClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerClient returns a LedgerClient over cc.
func NewLedgerClient(cc grpc.ClientConnInterface) LedgerClient {
	return &ledgerClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	return invoke[SubmitResponse](ctx, c.cc, MethodSubmit, in, opts)
}

func (c *ledgerClient) Account(ctx context.Context, in *AccountRequest, opts ...grpc.CallOption) (*AccountResponse, error) {
	return invoke[AccountResponse](ctx, c.cc, MethodAccount, in, opts)
}

func (c *ledgerClient) Guild(ctx context.Context, in *GuildRequest, opts ...grpc.CallOption) (*GuildResponse, error) {
	return invoke[GuildResponse](ctx, c.cc, MethodGuild, in, opts)
}

func (c *ledgerClient) Class(ctx context.Context, in *ClassRequest, opts ...grpc.CallOption) (*ClassResponse, error) {
	return invoke[ClassResponse](ctx, c.cc, MethodClass, in, opts)
}

func (c *ledgerClient) ClassesOwnedBy(ctx context.Context, in *ClassesOwnedByRequest, opts ...grpc.CallOption) (*ClassesOwnedByResponse, error) {
	return invoke[ClassesOwnedByResponse](ctx, c.cc, MethodClassesOwnedBy, in, opts)
}

func (c *ledgerClient) Delegates(ctx context.Context, in *DelegatesRequest, opts ...grpc.CallOption) (*DelegatesResponse, error) {
	return invoke[DelegatesResponse](ctx, c.cc, MethodDelegates, in, opts)
}

func (c *ledgerClient) Events(ctx context.Context, in *EventsRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c.cc, MethodEvents, in, opts)
}

func (c *ledgerClient) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, MethodStatus, in, opts)
}

func (c *ledgerClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (RecordReceiver, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodSubscribe, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &recordReceiver{stream}, nil
}

type recordReceiver struct {
	grpc.ClientStream
}

func (r *recordReceiver) Recv() (*journal.Record, error) {
	m := new(journal.Record)
	if err := r.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
