package guild

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/internal/statestore/physical/memory"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

var (
	alice = identity.AccountID{0xaa}
	bob   = identity.AccountID{0xbb}
	carol = identity.AccountID{0xcc}
)

func newTx(t *testing.T) *state.Tx {
	t.Helper()
	be := memory.New()
	t.Cleanup(func() { be.Close() })
	txn, err := be.Begin(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(txn.Discard)
	return state.NewTx(context.Background(), txn)
}

func TestIDsStrictlyIncreasingFromOne(t *testing.T) {
	tx := newTx(t)
	r := New()

	callers := []identity.AccountID{alice, bob, alice, carol, bob, bob}
	for i, caller := range callers {
		id, err := r.CreateGuild(tx, caller, []byte("g"))
		if err != nil {
			t.Fatal(err)
		}
		if want := ID(i + 1); id != want {
			t.Fatalf("call %d: id = %d, want %d", i, id, want)
		}
	}

	var ids []uint64
	for _, e := range tx.Events() {
		if e.Kind == event.KindGuildCreated {
			ids = append(ids, e.GuildID)
		}
	}
	for i, id := range ids {
		if id != uint64(i+1) {
			t.Fatalf("event ids = %v", ids)
		}
	}
	if next, _ := r.NextGuildID(tx); next != ID(len(callers)+1) {
		t.Fatalf("NextGuildID = %d", next)
	}
}

func TestRecreateOverwrites(t *testing.T) {
	tx := newTx(t)
	r := New()

	if _, err := r.CreateGuild(tx, alice, []byte("Alpha")); err != nil {
		t.Fatal(err)
	}
	evs := tx.Events()
	want := event.GuildCreated(1, []byte("Alpha"), alice)
	if len(evs) != 1 || evs[0].Kind != want.Kind || evs[0].GuildID != 1 || !bytes.Equal(evs[0].Name, want.Name) || evs[0].Account != alice {
		t.Fatalf("events = %+v", evs)
	}
	if next, _ := r.NextGuildID(tx); next != 2 {
		t.Fatalf("NextGuildID = %d, want 2", next)
	}

	if _, err := r.CreateGuild(tx, alice, []byte("Beta")); err != nil {
		t.Fatal(err)
	}
	g, err := r.Guild(tx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if g.ID != 2 || string(g.Name) != "Beta" || len(g.Members) != 0 {
		t.Fatalf("stored guild = %+v", g)
	}
}

func TestUpdateGuildWithoutGuild(t *testing.T) {
	tx := newTx(t)
	r := New()

	err := r.UpdateGuild(tx, bob, 1, Update{Name: []byte("x")})
	if !errors.Is(err, ErrNoGuildFound) {
		t.Fatalf("UpdateGuild = %v, want ErrNoGuildFound", err)
	}
	if n := len(tx.Events()); n != 0 {
		t.Fatalf("emitted %d events", n)
	}
}

func TestUpdateGuildReportsIDVerbatim(t *testing.T) {
	tx := newTx(t)
	r := New()
	if _, err := r.CreateGuild(tx, alice, []byte("Alpha")); err != nil {
		t.Fatal(err)
	}
	before := len(tx.Events())

	update := Update{Name: []byte("Renamed"), Members: []identity.AccountID{bob}}
	if err := r.UpdateGuild(tx, alice, 42, update); err != nil {
		t.Fatal(err)
	}

	evs := tx.Events()[before:]
	if len(evs) != 1 {
		t.Fatalf("emitted %d events, want 1", len(evs))
	}
	if evs[0].Kind != event.KindGuildUpdated || evs[0].GuildID != 42 || string(evs[0].Name) != "Renamed" {
		t.Fatalf("event = %+v", evs[0])
	}

	g, err := r.Guild(tx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if string(g.Name) != "Alpha" || len(g.Members) != 0 {
		t.Fatalf("update was persisted: %+v", g)
	}
}

func TestCounterOverflowWritesNothing(t *testing.T) {
	tx := newTx(t)
	r := New()
	if err := r.next.Put(tx, math.MaxUint64); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateGuild(tx, alice, []byte("x")); !errors.Is(err, arcerrors.ErrOverflow) {
		t.Fatalf("CreateGuild = %v, want ErrOverflow", err)
	}
	if _, err := r.Guild(tx, alice); !errors.Is(err, ErrNoGuildFound) {
		t.Fatalf("guild stored despite overflow: %v", err)
	}
	if len(tx.Events()) != 0 {
		t.Fatal("event emitted despite overflow")
	}
}
