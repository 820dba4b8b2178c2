package node

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gezibash/arc-ledger/internal/config"
	arcnode "github.com/gezibash/arc-ledger/internal/node"
	"github.com/gezibash/arc-ledger/internal/observability"
	"github.com/gezibash/arc-ledger/internal/server"
)

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a ledger node",
		Long: `Start a ledger node.

The node opens its state backend, applies genesis on first start, and serves
the ledger over gRPC until interrupted.

Examples:
  arc-ledger node start
  arc-ledger node start --backend memory --chain-id arc-local
  arc-ledger node start --genesis genesis.toml --redis
  arc-ledger node start --config /etc/arc-ledger/config.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, v)
		},
	}
	config.BindNodeFlags(cmd, v)
	return cmd
}

func runStart(cmd *cobra.Command, v *viper.Viper) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadNode(v, configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gen, err := arcnode.LoadGenesis(cfg.Genesis)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs, err := observability.New(ctx, observability.ObsConfig{
		LogLevel:         cfg.Observability.LogLevel,
		LogFormat:        cfg.Observability.LogFormat,
		OTLPEndpoint:     cfg.Observability.OTLPEndpoint,
		OTLPProtocol:     cfg.Observability.OTLPProtocol,
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		ChainID:          gen.ChainID,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
	}, os.Stderr)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	n, err := arcnode.New(ctx, &cfg, obs)
	if err != nil {
		_ = obs.Close(context.Background())
		return fmt.Errorf("init ledger: %w", err)
	}
	obs.Shutdown.Register("ledger", func(context.Context) error {
		return n.Close()
	})
	n.RegisterHealth(obs)
	if cfg.Observability.MetricsAddr != "" {
		obs.ServeMetrics(ctx, cfg.Observability.MetricsAddr)
	}

	srv, err := server.New(cfg.GRPC.Addr, obs, cfg.GRPC.EnableReflection, n.Ledger, n.Bus,
		server.Config{SubscribeBuffer: cfg.Events.SubscribeBuffer},
		grpc.MaxRecvMsgSize(cfg.GRPC.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.GRPC.MaxSendMsgSize),
	)
	if err != nil {
		_ = obs.Close(context.Background())
		return fmt.Errorf("create server: %w", err)
	}
	obs.Shutdown.Register("grpc-server", func(ctx context.Context) error {
		srv.Stop(ctx)
		return nil
	})
	// Subscribe streams end when the bus closes, so it goes first.
	obs.Shutdown.Register("event-bus", func(context.Context) error {
		n.Bus.Close()
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()
	srv.SetServingStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	slog.Info("serving", "addr", srv.Addr(), "chain_id", n.Genesis.ChainID, "metrics", cfg.Observability.MetricsAddr)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case serveErr = <-errCh:
		slog.Error("grpc serve failed", "error", serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := obs.Close(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return serveErr
}
