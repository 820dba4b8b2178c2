// Package api defines the LedgerService gRPC contract: the service
// descriptor, method names, and the CBOR-encoded request and response
// messages shared by the server and pkg/client.
package api

import (
	"context"

	"google.golang.org/grpc"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/codec"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/internal/origin"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "arc.ledger.v1.LedgerService"

// Codec is the content subtype every LedgerService call uses.
const Codec = codec.Name

const (
	MethodSubmit         = "/" + ServiceName + "/Submit"
	MethodAccount        = "/" + ServiceName + "/Account"
	MethodGuild          = "/" + ServiceName + "/Guild"
	MethodClass          = "/" + ServiceName + "/Class"
	MethodClassesOwnedBy = "/" + ServiceName + "/ClassesOwnedBy"
	MethodDelegates      = "/" + ServiceName + "/Delegates"
	MethodEvents         = "/" + ServiceName + "/Events"
	MethodStatus         = "/" + ServiceName + "/Status"
	MethodSubscribe      = "/" + ServiceName + "/Subscribe"
)

type SubmitRequest struct {
	Call origin.SignedCall `cbor:"1,keyasint"`
}

type SubmitResponse struct {
	Receipt ledger.Receipt `cbor:"1,keyasint"`
}

type AccountRequest struct {
	Account identity.AccountID `cbor:"1,keyasint"`
}

type AccountResponse struct {
	Free     balance.Amount `cbor:"1,keyasint"`
	Reserved balance.Amount `cbor:"2,keyasint"`
	Nonce    uint64         `cbor:"3,keyasint"`
}

type GuildRequest struct {
	Owner identity.AccountID `cbor:"1,keyasint"`
}

type GuildResponse struct {
	Guild guild.Guild `cbor:"1,keyasint"`
}

type ClassRequest struct {
	ClassID assetclass.ClassID `cbor:"1,keyasint"`
}

type ClassResponse struct {
	Info    assetclass.Info    `cbor:"1,keyasint"`
	Custody identity.AccountID `cbor:"2,keyasint"`
}

type ClassesOwnedByRequest struct {
	Owner identity.AccountID `cbor:"1,keyasint"`
}

type ClassesOwnedByResponse struct {
	ClassIDs []assetclass.ClassID `cbor:"1,keyasint"`
}

type DelegatesRequest struct {
	Owner identity.AccountID `cbor:"1,keyasint"`
}

type DelegatesResponse struct {
	Delegations []delegation.Delegation `cbor:"1,keyasint"`
}

type EventsRequest struct {
	From   uint64 `cbor:"1,keyasint"`
	Limit  int    `cbor:"2,keyasint"`
	Filter string `cbor:"3,keyasint"`
}

type EventsResponse struct {
	Records []journal.Record `cbor:"1,keyasint"`
	Next    uint64           `cbor:"2,keyasint"`
	More    bool             `cbor:"3,keyasint"`
}

type StatusRequest struct{}

type StatusResponse struct {
	ChainID       string         `cbor:"1,keyasint" yaml:"chain_id"`
	ModuleID      string         `cbor:"2,keyasint" yaml:"module_id"`
	ClassDeposit  balance.Amount `cbor:"3,keyasint" yaml:"class_deposit"`
	Head          uint64         `cbor:"4,keyasint" yaml:"head"`
	NextGuildID   guild.ID       `cbor:"5,keyasint" yaml:"next_guild_id"`
	NextClassID   uint64         `cbor:"6,keyasint" yaml:"next_class_id"`
	TotalIssuance balance.Amount `cbor:"7,keyasint" yaml:"total_issuance"`
	Backend       string         `cbor:"8,keyasint" yaml:"backend"`
	Keys          int64          `cbor:"9,keyasint" yaml:"keys"`
	SizeBytes     int64          `cbor:"10,keyasint" yaml:"size_bytes"`
	Subscribers   int            `cbor:"11,keyasint" yaml:"subscribers"`
}

// SubscribeRequest opens a record stream. When Replay is set, records from
// From up to the current head are sent before live ones.
type SubscribeRequest struct {
	Filter string `cbor:"1,keyasint"`
	Replay bool   `cbor:"2,keyasint"`
	From   uint64 `cbor:"3,keyasint"`
}

// LedgerServer is the server API for LedgerService.
type LedgerServer interface {
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	Account(context.Context, *AccountRequest) (*AccountResponse, error)
	Guild(context.Context, *GuildRequest) (*GuildResponse, error)
	Class(context.Context, *ClassRequest) (*ClassResponse, error)
	ClassesOwnedBy(context.Context, *ClassesOwnedByRequest) (*ClassesOwnedByResponse, error)
	Delegates(context.Context, *DelegatesRequest) (*DelegatesResponse, error)
	Events(context.Context, *EventsRequest) (*EventsResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Subscribe(*SubscribeRequest, RecordStream) error
}

// RecordStream is the server side of a Subscribe call.
type RecordStream interface {
	Send(*journal.Record) error
	grpc.ServerStream
}

type recordStream struct {
	grpc.ServerStream
}

func (s *recordStream) Send(r *journal.Record) error {
	return s.ServerStream.SendMsg(r)
}

// RegisterLedgerServer registers srv on s.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LedgerServer).Subscribe(in, &recordStream{stream})
}

// ServiceDesc describes LedgerService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unary(MethodSubmit, LedgerServer.Submit)},
		{MethodName: "Account", Handler: unary(MethodAccount, LedgerServer.Account)},
		{MethodName: "Guild", Handler: unary(MethodGuild, LedgerServer.Guild)},
		{MethodName: "Class", Handler: unary(MethodClass, LedgerServer.Class)},
		{MethodName: "ClassesOwnedBy", Handler: unary(MethodClassesOwnedBy, LedgerServer.ClassesOwnedBy)},
		{MethodName: "Delegates", Handler: unary(MethodDelegates, LedgerServer.Delegates)},
		{MethodName: "Events", Handler: unary(MethodEvents, LedgerServer.Events)},
		{MethodName: "Status", Handler: unary(MethodStatus, LedgerServer.Status)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "arc/ledger/v1/ledger.cbor",
}
