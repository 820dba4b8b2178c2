// Package ledger wires the guild registry, the class factory and their
// collaborators over one storage backend and dispatches signed calls against
// them one at a time.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/currency"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/factory"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/observability"
	"github.com/gezibash/arc-ledger/internal/origin"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
	"github.com/gezibash/arc-ledger/pkg/balance"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
	"github.com/gezibash/arc-ledger/pkg/logging"
)

var (
	// ErrChainMismatch indicates the state was initialized for another chain.
	ErrChainMismatch = errors.New("chain id mismatch")
	// ErrParamsMismatch indicates the configured chain parameters differ from
	// the ones pinned in state by Init.
	ErrParamsMismatch = errors.New("chain parameters mismatch")
	// ErrNotInitialized indicates Init has not been run against the state.
	ErrNotInitialized = errors.New("ledger not initialized")
	// ErrNotAuthorized indicates the caller may not perform the call.
	ErrNotAuthorized = errors.New("not authorized")
)

// DefaultModuleID is the module id custody accounts are derived from when
// none is configured.
var DefaultModuleID = factory.ModuleID{'a', 'r', 'c', '/', 'c', 'l', 'a', 's'}

const (
	// GenesisReceipt is the receipt id recorded for events emitted by Init.
	GenesisReceipt = "genesis"
	// ChainIDKey is the state key holding the chain id written by Init.
	ChainIDKey = "ledger/chain-id"
	// ParamsKey is the state key holding the Params pinned by Init.
	ParamsKey = "ledger/params"
)

// Config holds the chain parameters.
type Config struct {
	ChainID      string
	ModuleID     factory.ModuleID
	ClassDeposit balance.Amount
	MaxMetadata  int
	MaxDelegates int
}

// Params are the chain parameters fixed at Init. Custody accounts of
// existing classes depend on ModuleID, so they may never change afterwards.
type Params struct {
	ModuleID     factory.ModuleID `cbor:"1,keyasint"`
	ClassDeposit balance.Amount   `cbor:"2,keyasint"`
	MaxMetadata  int              `cbor:"3,keyasint"`
	MaxDelegates int              `cbor:"4,keyasint"`
}

// Params returns the parameters c pins.
func (c Config) Params() Params {
	return Params{
		ModuleID:     c.ModuleID,
		ClassDeposit: c.ClassDeposit,
		MaxMetadata:  c.MaxMetadata,
		MaxDelegates: c.MaxDelegates,
	}
}

func (p Params) diff(stored Params) string {
	switch {
	case p.ModuleID != stored.ModuleID:
		return fmt.Sprintf("module id %q, pinned %q", p.ModuleID, stored.ModuleID)
	case p.ClassDeposit != stored.ClassDeposit:
		return fmt.Sprintf("class deposit %s, pinned %s", p.ClassDeposit, stored.ClassDeposit)
	case p.MaxMetadata != stored.MaxMetadata:
		return fmt.Sprintf("max metadata %d, pinned %d", p.MaxMetadata, stored.MaxMetadata)
	case p.MaxDelegates != stored.MaxDelegates:
		return fmt.Sprintf("max delegates %d, pinned %d", p.MaxDelegates, stored.MaxDelegates)
	}
	return ""
}

// Publisher receives records after they are committed. Publish must not
// block for long; it runs with the dispatch lock held.
type Publisher interface {
	Publish(ctx context.Context, records []journal.Record) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMetrics records dispatch metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithPublisher adds a publisher for committed records.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publishers = append(l.publishers, p) }
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(base *slog.Logger) Option {
	return func(l *Ledger) { l.log = logging.New(base).WithComponent("ledger") }
}

// WithClock overrides the clock used to timestamp records.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is the state machine.
type Ledger struct {
	backend    physical.Backend
	cfg        Config
	metrics    *observability.Metrics
	publishers []Publisher
	now        func() time.Time
	log        *logging.Logger

	mu sync.Mutex

	chain       state.Value[string]
	params      state.Value[Params]
	verifier    *origin.Verifier
	currency    *currency.Currency
	delegations *delegation.Registry
	classes     *assetclass.Registry
	guilds      *guild.Registry
	factory     *factory.Factory
	journal     *journal.Journal
}

// New creates a ledger over backend. The ledger does not own backend.
func New(backend physical.Backend, cfg Config, opts ...Option) (*Ledger, error) {
	if cfg.ChainID == "" {
		return nil, fmt.Errorf("chain id is required: %w", arcerrors.ErrInvalidInput)
	}
	if cfg.ModuleID == (factory.ModuleID{}) {
		cfg.ModuleID = DefaultModuleID
	}
	if cfg.MaxMetadata <= 0 {
		cfg.MaxMetadata = assetclass.DefaultMaxMetadata
	}
	if cfg.MaxDelegates <= 0 {
		cfg.MaxDelegates = delegation.DefaultMaxDelegates
	}

	cur := currency.New()
	dels := delegation.New(cfg.MaxDelegates)
	classes := assetclass.New(cfg.MaxMetadata)

	l := &Ledger{
		backend:     backend,
		cfg:         cfg,
		now:         time.Now,
		log:         logging.New(nil).WithComponent("ledger"),
		chain:       state.NewValue(ChainIDKey, ""),
		params:      state.NewValue(ParamsKey, Params{}),
		verifier:    origin.NewVerifier(cfg.ChainID),
		currency:    cur,
		delegations: dels,
		classes:     classes,
		guilds:      guild.New(),
		factory: factory.New(factory.Config{
			ModuleID:     cfg.ModuleID,
			ClassDeposit: cfg.ClassDeposit,
		}, cur, dels, classes),
		journal: journal.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the configured chain parameters, with defaults applied.
// After a successful Init they equal the pinned ones.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Endowment is a genesis balance.
type Endowment struct {
	Account identity.AccountID
	Amount  balance.Amount
}

// Init marks the state as belonging to this chain, pins the chain parameters
// and deposits the endowments. It is a no-op on state already initialized
// for the same chain and parameters. It fails with ErrChainMismatch on state
// initialized for another chain and with ErrParamsMismatch when the
// configured parameters differ from the pinned ones.
func (l *Ledger) Init(ctx context.Context, endowments []Endowment) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, ctx := observability.StartOperation(ctx, l.metrics, "ledger.init",
		attribute.String("chain_id", l.cfg.ChainID))
	defer func() { op.End(err) }()

	var records []journal.Record
	err = physical.Update(ctx, l.backend, func(txn physical.Txn) error {
		tx := state.NewTx(ctx, txn)
		chain, err := l.chain.Get(tx)
		if err != nil {
			return err
		}
		switch chain {
		case l.cfg.ChainID:
			pinned, err := l.params.Exists(tx)
			if err != nil {
				return err
			}
			if !pinned {
				op.Logger().WarnContext(ctx, "pinning chain parameters on initialized state")
				return l.params.Put(tx, l.cfg.Params())
			}
			if err := l.checkParams(tx); err != nil {
				return err
			}
			op.Logger().InfoContext(ctx, "state already initialized")
			return nil
		case "":
		default:
			return fmt.Errorf("state belongs to %q, not %q: %w", chain, l.cfg.ChainID, ErrChainMismatch)
		}

		if err := l.chain.Put(tx, l.cfg.ChainID); err != nil {
			return err
		}
		if err := l.params.Put(tx, l.cfg.Params()); err != nil {
			return err
		}
		for _, e := range endowments {
			if err := l.currency.Deposit(tx, e.Account, e.Amount); err != nil {
				return fmt.Errorf("endow %s: %w", e.Account.Short(), err)
			}
		}
		records, err = l.journal.Append(tx, GenesisReceipt, identity.AccountID{}, l.now(), tx.Events())
		return err
	})
	if err != nil {
		return err
	}
	l.commitRecords(ctx, records)
	return nil
}

// Receipt reports the outcome of one dispatched call.
type Receipt struct {
	ID      string             `cbor:"1,keyasint"`
	Account identity.AccountID `cbor:"2,keyasint"`
	Nonce   uint64             `cbor:"3,keyasint"`
	Kind    CallKind           `cbor:"4,keyasint"`
	Records []journal.Record   `cbor:"5,keyasint,omitempty"`
	Error   string             `cbor:"6,keyasint,omitempty"`

	GuildID guild.ID           `cbor:"7,keyasint,omitempty"`
	ClassID assetclass.ClassID `cbor:"8,keyasint,omitempty"`
	Custody identity.AccountID `cbor:"9,keyasint"`
}

// OK reports whether the call took effect.
func (r *Receipt) OK() bool {
	return r.Error == ""
}

// Dispatch authenticates sc, consumes its nonce, and runs its call. Calls
// run one at a time. A call that fails leaves no trace in state apart from
// the consumed nonce; in that case both a receipt carrying the error and the
// error itself are returned. Calls that are rejected before the nonce is
// consumed return a nil receipt.
func (l *Ledger) Dispatch(ctx context.Context, sc origin.SignedCall) (receipt *Receipt, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	receipt = &Receipt{ID: uuid.NewString(), Nonce: sc.Nonce}
	op, ctx := observability.StartOperation(ctx, l.metrics, "ledger.dispatch",
		attribute.String("receipt", receipt.ID))
	defer func() { op.End(err) }()

	call, err := DecodeCall(sc.Call)
	if err != nil {
		l.countCall("invalid", "rejected")
		return nil, err
	}
	receipt.Kind = call.Kind
	op.With(attribute.String("call", string(call.Kind)))

	var who identity.AccountID
	err = physical.Update(ctx, l.backend, func(txn physical.Txn) error {
		tx := state.NewTx(ctx, txn)
		if err := l.checkChain(tx); err != nil {
			return err
		}
		who, err = l.verifier.Verify(tx, sc)
		return err
	})
	if err != nil {
		l.countCall(call.Kind, "rejected")
		return nil, err
	}
	receipt.Account = who
	op.With(attribute.String("account", who.Short()))

	records, err := l.execute(ctx, who, call, receipt)
	if err != nil {
		receipt.Error = err.Error()
		l.countCall(call.Kind, "failed")
		l.log.WithAccount("account", who).WithCall(string(call.Kind), receipt.ID).
			DebugContext(ctx, "call failed", "nonce", sc.Nonce, "error", err)
		return receipt, err
	}
	receipt.Records = records
	l.countCall(call.Kind, "ok")
	l.commitRecords(ctx, records)
	return receipt, nil
}

// execute runs call in its own transaction, committing only when it succeeds.
func (l *Ledger) execute(ctx context.Context, who identity.AccountID, call Call, receipt *Receipt) ([]journal.Record, error) {
	txn, err := l.backend.Begin(ctx, true)
	if err != nil {
		return nil, err
	}
	defer txn.Discard()

	tx := state.NewTx(ctx, txn)
	if err := l.apply(tx, who, call, receipt); err != nil {
		return nil, err
	}
	records, err := l.journal.Append(tx, receipt.ID, who, l.now(), tx.Events())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("commit %s: %w", call.Kind, err)
	}
	return records, nil
}

func (l *Ledger) apply(tx *state.Tx, who identity.AccountID, call Call, receipt *Receipt) error {
	switch call.Kind {
	case CallCreateGuild:
		id, err := l.guilds.CreateGuild(tx, who, call.Name)
		if err != nil {
			return err
		}
		receipt.GuildID = id
		return nil

	case CallUpdateGuild:
		receipt.GuildID = call.GuildID
		return l.guilds.UpdateGuild(tx, who, call.GuildID, call.Update())

	case CallCreateClass:
		custody, id, err := l.factory.CreateClass(tx, who, call.Metadata, call.Properties)
		if err != nil {
			return err
		}
		receipt.Custody, receipt.ClassID = custody, id
		return nil

	case CallRemoveDelegate:
		if who != call.Owner && who != call.Delegate {
			return fmt.Errorf("remove delegate of %s by %s: %w", call.Owner.Short(), who.Short(), ErrNotAuthorized)
		}
		kind, err := delegation.ParseKind(string(call.Delegation))
		if err != nil {
			return err
		}
		return l.delegations.RemoveDelegate(tx, call.Owner, call.Delegate, kind, call.Delay)

	case CallTransfer:
		return l.currency.Transfer(tx, who, call.To, call.Amount)
	}
	return fmt.Errorf("call kind %q: %w", call.Kind, arcerrors.ErrInvalidInput)
}

func (l *Ledger) checkChain(tx *state.Tx) error {
	chain, err := l.chain.Get(tx)
	if err != nil {
		return err
	}
	switch chain {
	case l.cfg.ChainID:
		return l.checkParams(tx)
	case "":
		return ErrNotInitialized
	}
	return fmt.Errorf("state belongs to %q: %w", chain, ErrChainMismatch)
}

func (l *Ledger) checkParams(tx *state.Tx) error {
	stored, err := l.params.Get(tx)
	if err != nil {
		return err
	}
	if d := l.cfg.Params().diff(stored); d != "" {
		return fmt.Errorf("%s: %w", d, ErrParamsMismatch)
	}
	return nil
}

func (l *Ledger) commitRecords(ctx context.Context, records []journal.Record) {
	if len(records) == 0 {
		return
	}
	if l.metrics != nil {
		for _, r := range records {
			l.metrics.EventsTotal.WithLabelValues(string(r.Event.Kind)).Inc()
		}
	}
	for _, p := range l.publishers {
		if err := p.Publish(ctx, records); err != nil {
			l.log.WithError(err).WarnContext(ctx, "publish records failed",
				"first_seq", records[0].Seq, "count", len(records))
		}
	}
}

func (l *Ledger) countCall(kind CallKind, status string) {
	if l.metrics == nil {
		return
	}
	l.metrics.CallsTotal.WithLabelValues(string(kind), status).Inc()
}
