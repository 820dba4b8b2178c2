package server

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gezibash/arc-ledger/internal/cel"
	"github.com/gezibash/arc-ledger/internal/eventbus"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/pkg/api"
)

type ledgerService struct {
	ledger *ledger.Ledger
	bus    *eventbus.Bus
	cfg    Config
}

// Submit dispatches a signed call. A call that ran and failed is not an RPC
// error: its receipt carries the failure. Calls rejected before their nonce
// was consumed map to a status error.
func (s *ledgerService) Submit(ctx context.Context, req *api.SubmitRequest) (*api.SubmitResponse, error) {
	receipt, err := s.ledger.Dispatch(ctx, req.Call)
	if receipt == nil {
		return nil, toStatus(err, "submit")
	}
	return &api.SubmitResponse{Receipt: *receipt}, nil
}

func (s *ledgerService) Account(ctx context.Context, req *api.AccountRequest) (*api.AccountResponse, error) {
	acct, err := s.ledger.Account(ctx, req.Account)
	if err != nil {
		return nil, toStatus(err, "account")
	}
	nonce, err := s.ledger.Nonce(ctx, req.Account)
	if err != nil {
		return nil, toStatus(err, "nonce")
	}
	return &api.AccountResponse{Free: acct.Free, Reserved: acct.Reserved, Nonce: nonce}, nil
}

func (s *ledgerService) Guild(ctx context.Context, req *api.GuildRequest) (*api.GuildResponse, error) {
	g, err := s.ledger.Guild(ctx, req.Owner)
	if err != nil {
		return nil, toStatus(err, "guild")
	}
	return &api.GuildResponse{Guild: g}, nil
}

func (s *ledgerService) Class(ctx context.Context, req *api.ClassRequest) (*api.ClassResponse, error) {
	info, err := s.ledger.Class(ctx, req.ClassID)
	if err != nil {
		return nil, toStatus(err, "class")
	}
	custody, err := s.ledger.Custody(ctx, req.ClassID)
	if err != nil {
		return nil, toStatus(err, "class")
	}
	return &api.ClassResponse{Info: info, Custody: custody}, nil
}

func (s *ledgerService) ClassesOwnedBy(ctx context.Context, req *api.ClassesOwnedByRequest) (*api.ClassesOwnedByResponse, error) {
	ids, err := s.ledger.ClassesOwnedBy(ctx, req.Owner)
	if err != nil {
		return nil, toStatus(err, "classes owned by")
	}
	return &api.ClassesOwnedByResponse{ClassIDs: ids}, nil
}

func (s *ledgerService) Delegates(ctx context.Context, req *api.DelegatesRequest) (*api.DelegatesResponse, error) {
	list, err := s.ledger.Delegates(ctx, req.Owner)
	if err != nil {
		return nil, toStatus(err, "delegates")
	}
	return &api.DelegatesResponse{Delegations: list}, nil
}

func (s *ledgerService) Events(ctx context.Context, req *api.EventsRequest) (*api.EventsResponse, error) {
	filter, err := journal.CompileFilter(req.Filter)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "filter: %v", err)
	}
	page, err := s.ledger.Events(ctx, journal.Query{From: req.From, Limit: req.Limit, Filter: filter})
	if err != nil {
		return nil, toStatus(err, "events")
	}
	return &api.EventsResponse{Records: page.Records, Next: page.Next, More: page.More}, nil
}

func (s *ledgerService) Status(ctx context.Context, _ *api.StatusRequest) (*api.StatusResponse, error) {
	params, err := s.ledger.Params(ctx)
	if err != nil {
		return nil, toStatus(err, "params")
	}
	resp := &api.StatusResponse{
		ChainID:      s.ledger.Config().ChainID,
		ModuleID:     params.ModuleID.String(),
		ClassDeposit: params.ClassDeposit,
	}
	if resp.Head, err = s.ledger.Head(ctx); err != nil {
		return nil, toStatus(err, "head")
	}
	if resp.NextGuildID, err = s.ledger.NextGuildID(ctx); err != nil {
		return nil, toStatus(err, "next guild id")
	}
	if resp.NextClassID, err = s.ledger.NextClassID(ctx); err != nil {
		return nil, toStatus(err, "next class id")
	}
	if resp.TotalIssuance, err = s.ledger.TotalIssuance(ctx); err != nil {
		return nil, toStatus(err, "total issuance")
	}
	stats, err := s.ledger.Stats(ctx)
	if err != nil {
		return nil, toStatus(err, "stats")
	}
	resp.Backend, resp.Keys, resp.SizeBytes = stats.BackendType, stats.Keys, stats.SizeBytes
	if s.bus != nil {
		resp.Subscribers = s.bus.Len()
	}
	return resp, nil
}

// Subscribe streams committed records matching the request filter. The bus
// subscription is opened before any replay so no record committed during
// the replay is missed; live records already sent by the replay are skipped.
func (s *ledgerService) Subscribe(req *api.SubscribeRequest, stream api.RecordStream) error {
	if s.bus == nil {
		return status.Error(codes.Unavailable, "event streaming disabled")
	}
	ctx := stream.Context()

	filter, err := journal.CompileFilter(req.Filter)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "filter: %v", err)
	}

	sub, err := s.bus.Subscribe(ctx, filter, &eventbus.SubscriptionOptions{
		BufferSize:         s.cfg.SubscribeBuffer,
		BackpressurePolicy: eventbus.BackpressureDisconnect,
	})
	if err != nil {
		return status.Errorf(codes.Unavailable, "subscribe: %v", err)
	}
	defer sub.Cancel()

	var next uint64
	if req.Replay {
		next, err = s.replay(ctx, stream, filter, req.From)
		if err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-sub.Records():
			if !ok {
				if err := sub.Err(); err != nil {
					return status.Errorf(codes.ResourceExhausted, "subscription %s: %v", sub.ID(), err)
				}
				if ctx.Err() != nil {
					return nil
				}
				return status.Error(codes.Unavailable, "event bus closed")
			}
			if r.Seq < next {
				continue
			}
			if err := stream.Send(&r); err != nil {
				return err
			}
		}
	}
}

// replay sends journaled records from seq onwards and returns the sequence
// number live delivery resumes at.
func (s *ledgerService) replay(ctx context.Context, stream api.RecordStream, filter *cel.Filter, from uint64) (uint64, error) {
	for {
		page, err := s.ledger.Events(ctx, journal.Query{From: from, Limit: journal.MaxLimit, Filter: filter})
		if err != nil {
			return 0, toStatus(err, "replay")
		}
		for i := range page.Records {
			if err := stream.Send(&page.Records[i]); err != nil {
				return 0, err
			}
		}
		from = page.Next
		if !page.More {
			return from, nil
		}
	}
}
