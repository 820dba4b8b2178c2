package server

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/gezibash/arc-ledger/internal/eventbus"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/internal/observability"
	"github.com/gezibash/arc-ledger/pkg/api"
)

// Config tunes the service.
type Config struct {
	// SubscribeBuffer is the per-stream record buffer. Zero selects the
	// event bus default.
	SubscribeBuffer int
}

type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	health     *health.Server
}

func New(addr string, obs *observability.Observability, enableReflection bool, l *ledger.Ledger, bus *eventbus.Bus, cfg Config, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	if obs != nil && obs.Metrics != nil {
		metrics = obs.Metrics
	}

	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(metrics)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(metrics)),
	}
	serverOpts = append(serverOpts, opts...)

	grpcServer := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	api.RegisterLedgerServer(grpcServer, &ledgerService{
		ledger: l,
		bus:    bus,
		cfg:    cfg,
	})

	if enableReflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		grpcServer: grpcServer,
		listener:   lis,
		health:     hs,
	}, nil
}

func (s *Server) SetServingStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	if s.health != nil {
		s.health.SetServingStatus("", status)
		s.health.SetServingStatus(api.ServiceName, status)
	}
}

func (s *Server) Serve() error {
	return s.grpcServer.Serve(s.listener)
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) {
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("graceful stop timed out, forcing")
		s.grpcServer.Stop()
		<-done
	}
}

func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}
