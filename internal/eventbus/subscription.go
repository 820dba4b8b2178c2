package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gezibash/arc-ledger/internal/cel"
	"github.com/gezibash/arc-ledger/internal/journal"
)

const defaultBufferSize = 100

// BackpressurePolicy controls behavior when a subscription's buffer is full.
type BackpressurePolicy int

const (
	// BackpressureDrop drops records when the buffer is full. After
	// MaxConsecutiveDrops drops in a row the subscriber is disconnected.
	BackpressureDrop BackpressurePolicy = iota

	// BackpressureDisconnect disconnects the subscriber on its first drop.
	BackpressureDisconnect
)

// SubscriptionOptions configures a single subscription.
type SubscriptionOptions struct {
	BufferSize         int // Channel buffer size. Default 100.
	BackpressurePolicy BackpressurePolicy
}

// SubscriptionHealth reports delivery counters for a subscription.
type SubscriptionHealth struct {
	ID               string
	Filter           string
	TotalDelivered   int64
	TotalDropped     int64
	ConsecutiveDrops int64
	BufferUsed       int
	BufferCapacity   int
	Lagging          bool
}

// Subscription is a live feed of committed records matching a filter.
type Subscription struct {
	id      string
	filter  *cel.Filter
	records chan journal.Record
	cancel  context.CancelFunc
	done    chan struct{}
	opts    SubscriptionOptions

	errMu sync.RWMutex
	err   error

	// sendMu orders channel sends against the close in the watcher goroutine.
	sendMu sync.Mutex
	closed bool

	totalDelivered   atomic.Int64
	totalDropped     atomic.Int64
	consecutiveDrops atomic.Int64
}

func newSubscription(ctx context.Context, filter *cel.Filter, opts SubscriptionOptions) *Subscription {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		id:      uuid.NewString(),
		filter:  filter,
		records: make(chan journal.Record, opts.BufferSize),
		cancel:  cancel,
		done:    make(chan struct{}),
		opts:    opts,
	}

	go func() {
		<-ctx.Done()
		s.sendMu.Lock()
		s.closed = true
		close(s.records)
		s.sendMu.Unlock()
		close(s.done)
	}()

	return s
}

// ID returns the subscription id.
func (s *Subscription) ID() string { return s.id }

// Records returns the delivery channel. It is closed when the subscription
// ends.
func (s *Subscription) Records() <-chan journal.Record { return s.records }

// Cancel ends the subscription.
func (s *Subscription) Cancel() { s.cancel() }

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns why the bus ended the subscription, if it did.
func (s *Subscription) Err() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.err
}

// Health returns the subscription's delivery counters.
func (s *Subscription) Health() SubscriptionHealth {
	return SubscriptionHealth{
		ID:               s.id,
		Filter:           s.filter.String(),
		TotalDelivered:   s.totalDelivered.Load(),
		TotalDropped:     s.totalDropped.Load(),
		ConsecutiveDrops: s.consecutiveDrops.Load(),
		BufferUsed:       len(s.records),
		BufferCapacity:   cap(s.records),
		Lagging:          len(s.records) > cap(s.records)*80/100,
	}
}

// offer tries a non-blocking send and reports whether it was delivered.
func (s *Subscription) offer(r journal.Record) (delivered, open bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.records <- r:
		return true, true
	default:
		return false, true
	}
}

func (s *Subscription) fail(reason string) {
	s.errMu.Lock()
	s.err = fmt.Errorf("disconnected: %s", reason)
	s.errMu.Unlock()
	s.Cancel()
}
