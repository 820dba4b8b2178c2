package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/eventbus"
	"github.com/gezibash/arc-ledger/internal/genesis"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/internal/observability"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
)

// Node is an initialized ledger with its backend and event fan-out.
type Node struct {
	Backend physical.Backend
	Ledger  *ledger.Ledger
	Bus     *eventbus.Bus
	Genesis *genesis.File

	redis *eventbus.RedisPublisher
}

// New opens the backend, builds the ledger and its publishers, and applies
// genesis. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.NodeConfig, obs *observability.Observability) (n *Node, err error) {
	logger := slog.Default()
	var metrics *observability.Metrics
	if obs != nil {
		logger, metrics = obs.Logger, obs.Metrics
	}

	gen, err := LoadGenesis(cfg.Genesis)
	if err != nil {
		return nil, err
	}
	lcfg, err := gen.LedgerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, &cfg.Storage, metrics)
	if err != nil {
		return nil, err
	}
	n = &Node{Backend: backend, Genesis: gen}
	defer func() {
		if err != nil {
			_ = n.Close()
		}
	}()

	n.Bus = eventbus.New(eventbus.Config{
		IntakeBufferSize:    cfg.Events.IntakeBufferSize,
		MaxConsecutiveDrops: cfg.Events.MaxConsecutiveDrops,
		Logger:              logger,
	}, metrics)

	opts := []ledger.Option{
		ledger.WithMetrics(metrics),
		ledger.WithLogger(logger),
		ledger.WithPublisher(n.Bus),
	}
	if cfg.Events.Redis {
		n.redis, err = eventbus.NewRedisPublisher(ctx, cfg.Events.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		opts = append(opts, ledger.WithPublisher(n.redis))
		logger.Info("publishing records to redis", "channel", n.redis.Channel())
	}

	n.Ledger, err = ledger.New(backend, lcfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := gen.Apply(ctx, n.Ledger); err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}

	logger.Info("ledger ready",
		"chain_id", lcfg.ChainID,
		"module_id", lcfg.ModuleID.String(),
		"backend", cfg.Storage.Backend,
		"accounts", len(gen.Accounts),
	)
	return n, nil
}

// RegisterHealth reports the ledger and the event bus on obs's /health. The
// ledger is ready once its chain parameters are pinned.
func (n *Node) RegisterHealth(obs *observability.Observability) {
	obs.ChainID = n.Genesis.ChainID
	obs.AddReadinessCheck("ledger", func(ctx context.Context) error {
		_, err := n.Ledger.Params(ctx)
		return err
	})
	obs.AddReadinessCheck("event-bus", func(context.Context) error {
		return n.Bus.Err()
	})
}

// Close stops the event fan-out and closes the backend.
func (n *Node) Close() error {
	if n.Bus != nil {
		n.Bus.Close()
	}
	var errs []error
	if n.redis != nil {
		errs = append(errs, n.redis.Close())
	}
	if n.Backend != nil {
		errs = append(errs, n.Backend.Close())
	}
	return errors.Join(errs...)
}
