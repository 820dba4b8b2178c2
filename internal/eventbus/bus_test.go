package eventbus

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/observability"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

func records(from uint64, n int) []journal.Record {
	out := make([]journal.Record, n)
	for i := range out {
		seq := from + uint64(i)
		kind := event.GuildCreated(seq, nil, identity.AccountID{byte(seq)})
		if seq%2 == 1 {
			kind = event.GuildUpdated(seq, nil)
		}
		out[i] = journal.Record{Seq: seq, Receipt: "r", Event: kind}
	}
	return out
}

func receive(t *testing.T, sub *Subscription, n int) []journal.Record {
	t.Helper()
	var got []journal.Record
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case r, ok := <-sub.Records():
			if !ok {
				t.Fatalf("subscription closed after %d records", len(got))
			}
			got = append(got, r)
		case <-timeout:
			t.Fatalf("timed out after %d of %d records", len(got), n)
		}
	}
	return got
}

func TestSubscribeFilterAndOrder(t *testing.T) {
	bus := New(Config{}, nil)
	defer bus.Close()

	all, err := bus.Subscribe(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	filter, err := journal.CompileFilter(`kind == "guild.created"`)
	if err != nil {
		t.Fatal(err)
	}
	created, err := bus.Subscribe(context.Background(), filter, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := bus.Publish(context.Background(), records(0, 4)); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), records(4, 2)); err != nil {
		t.Fatal(err)
	}

	for i, r := range receive(t, all, 6) {
		if r.Seq != uint64(i) {
			t.Fatalf("all[%d].Seq = %d", i, r.Seq)
		}
	}
	for i, r := range receive(t, created, 3) {
		if r.Seq != uint64(2*i) || r.Event.Kind != event.KindGuildCreated {
			t.Fatalf("created[%d] = %+v", i, r)
		}
	}
}

func TestCancelRemovesSubscription(t *testing.T) {
	m := observability.NewMetrics()
	bus := New(Config{}, m)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bus.Len() != 1 || testutil.ToFloat64(m.Subscribers) != 1 {
		t.Fatalf("Len = %d", bus.Len())
	}
	sub.Cancel()
	<-sub.Done()

	deadline := time.Now().Add(2 * time.Second)
	for bus.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := <-sub.Records(); ok {
		t.Fatal("records channel still open")
	}
}

func TestDisconnectPolicy(t *testing.T) {
	m := observability.NewMetrics()
	bus := New(Config{}, m)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), nil, &SubscriptionOptions{
		BufferSize:         1,
		BackpressurePolicy: BackpressureDisconnect,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), records(0, 3)); err != nil {
		t.Fatal(err)
	}

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("slow subscriber not disconnected")
	}
	if sub.Err() == nil {
		t.Fatal("Err() = nil after disconnect")
	}
	if testutil.ToFloat64(m.SubscriberDrops) < 1 {
		t.Fatal("drop not counted")
	}
}

func TestDropPolicyKeepsSubscriber(t *testing.T) {
	bus := New(Config{MaxConsecutiveDrops: 100}, nil)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), nil, &SubscriptionOptions{BufferSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), records(0, 5)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sub.Health().TotalDropped != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("health = %+v", sub.Health())
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := receive(t, sub, 2)
	if got[0].Seq != 0 || got[1].Seq != 1 {
		t.Fatalf("got %+v", got)
	}
	if sub.Err() != nil {
		t.Fatalf("Err() = %v", sub.Err())
	}
}

func TestClosedBus(t *testing.T) {
	bus := New(Config{}, nil)
	sub, err := bus.Subscribe(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Err(); err != nil {
		t.Fatalf("Err() on open bus = %v", err)
	}
	bus.Close()
	bus.Close()
	if err := bus.Err(); err != ErrBusClosed {
		t.Fatalf("Err() after Close = %v", err)
	}

	<-sub.Done()
	if _, err := bus.Subscribe(context.Background(), nil, nil); err != ErrBusClosed {
		t.Fatalf("Subscribe after Close = %v", err)
	}
	if err := bus.Publish(context.Background(), records(0, 1)); err != ErrBusClosed {
		t.Fatalf("Publish after Close = %v", err)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBusLogsAsComponent(t *testing.T) {
	var out lockedBuffer
	bus := New(Config{Logger: slog.New(slog.NewJSONHandler(&out, nil))}, nil)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), nil, &SubscriptionOptions{
		BufferSize:         1,
		BackpressurePolicy: BackpressureDisconnect,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), records(0, 3)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("slow subscriber not disconnected")
	}

	logged := out.String()
	for _, want := range []string{
		`"msg":"subscription registered"`,
		`"msg":"disconnecting slow subscriber"`,
		`"component":"eventbus"`,
	} {
		if !strings.Contains(logged, want) {
			t.Fatalf("log output missing %s:\n%s", want, logged)
		}
	}
}
