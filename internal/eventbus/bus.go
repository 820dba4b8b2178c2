// Package eventbus fans committed journal records out to in-process
// subscribers and, optionally, to Redis pub/sub.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gezibash/arc-ledger/internal/cel"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/observability"
	"github.com/gezibash/arc-ledger/pkg/logging"
)

const (
	defaultIntakeSize = 4096
	defaultMaxDrops   = 1000
)

// ErrBusClosed indicates the bus has been closed.
var ErrBusClosed = errors.New("event bus closed")

// Config configures the bus.
type Config struct {
	IntakeBufferSize    int // Records queued for fan-out. Default 4096.
	MaxConsecutiveDrops int // Drops before disconnect. Default 1000.
	Logger              *slog.Logger
}

// Bus delivers committed records to subscriptions. A single worker drains the
// intake so every subscriber sees records in sequence order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	intake  chan []journal.Record
	stop    chan struct{}
	wg      sync.WaitGroup
	config  Config
	metrics *observability.Metrics
	log     *logging.Logger
}

// New starts a bus. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics) *Bus {
	if cfg.IntakeBufferSize <= 0 {
		cfg.IntakeBufferSize = defaultIntakeSize
	}
	if cfg.MaxConsecutiveDrops <= 0 {
		cfg.MaxConsecutiveDrops = defaultMaxDrops
	}

	b := &Bus{
		subs:    make(map[string]*Subscription),
		intake:  make(chan []journal.Record, cfg.IntakeBufferSize),
		stop:    make(chan struct{}),
		config:  cfg,
		metrics: metrics,
		log:     logging.New(cfg.Logger).WithComponent("eventbus"),
	}
	b.wg.Add(1)
	go b.fanout()
	return b
}

// Subscribe registers a subscription for records matching filter. A nil
// filter matches every record. The subscription ends when ctx is done, when
// it is cancelled, or when the bus closes.
func (b *Bus) Subscribe(ctx context.Context, filter *cel.Filter, opts *SubscriptionOptions) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if opts == nil {
		opts = &SubscriptionOptions{}
	}

	sub := newSubscription(ctx, filter, *opts)
	b.subs[sub.id] = sub
	b.gauge(len(b.subs))

	b.log.Info("subscription registered",
		"subscription_id", sub.id,
		"filter", filter.String(),
		"active_subscriptions", len(b.subs),
	)

	go func() {
		<-sub.done
		b.mu.Lock()
		delete(b.subs, sub.id)
		remaining := len(b.subs)
		b.gauge(remaining)
		b.mu.Unlock()
		b.log.Info("subscription removed",
			"subscription_id", sub.id,
			"remaining_subscriptions", remaining,
		)
	}()

	return sub, nil
}

// Publish queues records for fan-out without blocking. When the intake is
// full the batch is dropped.
func (b *Bus) Publish(_ context.Context, records []journal.Record) error {
	if len(records) == 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.intake <- records:
		return nil
	default:
		return fmt.Errorf("event bus intake full, dropped %d records from seq %d", len(records), records[0].Seq)
	}
}

func (b *Bus) fanout() {
	defer b.wg.Done()
	for {
		select {
		case batch := <-b.intake:
			for _, r := range batch {
				b.deliver(r)
			}
		case <-b.stop:
			return
		}
	}
}

func (b *Bus) deliver(r journal.Record) {
	attrs := r.Attributes()
	for _, sub := range b.matching(attrs) {
		delivered, open := sub.offer(r)
		if !open {
			continue
		}
		if delivered {
			sub.consecutiveDrops.Store(0)
			sub.totalDelivered.Add(1)
			continue
		}

		sub.totalDropped.Add(1)
		if b.metrics != nil {
			b.metrics.SubscriberDrops.Inc()
		}
		drops := sub.consecutiveDrops.Add(1)
		switch {
		case sub.opts.BackpressurePolicy == BackpressureDisconnect:
			b.disconnect(sub, "buffer full")
		case drops >= int64(b.config.MaxConsecutiveDrops):
			b.disconnect(sub, fmt.Sprintf("exceeded %d consecutive drops", b.config.MaxConsecutiveDrops))
		default:
			b.log.Warn("subscription buffer full, record dropped",
				"subscription_id", sub.id, "seq", r.Seq, "consecutive_drops", drops)
		}
	}
}

func (b *Bus) matching(attrs map[string]any) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*Subscription
	for _, sub := range b.subs {
		if sub.filter.Match(attrs) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (b *Bus) disconnect(sub *Subscription, reason string) {
	b.log.Warn("disconnecting slow subscriber",
		"subscription_id", sub.id, "reason", reason,
		"total_delivered", sub.totalDelivered.Load(),
		"total_dropped", sub.totalDropped.Load())
	sub.fail(reason)
}

func (b *Bus) gauge(n int) {
	if b.metrics != nil {
		b.metrics.Subscribers.Set(float64(n))
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Err returns ErrBusClosed once the bus has been closed.
func (b *Bus) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	return nil
}

// Health returns every subscription's counters.
func (b *Bus) Health() []SubscriptionHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SubscriptionHealth, 0, len(b.subs))
	for _, sub := range b.subs {
		out = append(out, sub.Health())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close cancels every subscription and stops the worker. Queued records that
// have not been delivered are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.Cancel()
	}
	b.mu.Unlock()

	close(b.stop)
	b.wg.Wait()
}
