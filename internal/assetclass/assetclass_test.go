package assetclass

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/internal/statestore/physical/memory"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

var (
	alice = identity.AccountID{0xaa}
	bob   = identity.AccountID{0xbb}
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

func TestCreateClassAllocatesSequentially(t *testing.T) {
	tx := newTx(t)
	r := New(0)

	next, err := r.NextClassID(tx)
	if err != nil || next != 0 {
		t.Fatalf("NextClassID = %d, %v; want 0", next, err)
	}

	data := Data{Deposit: balance.New(10), Properties: Properties{Transferable: true}}
	for want := ClassID(0); want < 3; want++ {
		id, err := r.CreateClass(tx, alice, []byte("cid"), data)
		if err != nil {
			t.Fatal(err)
		}
		if id != want {
			t.Fatalf("CreateClass id = %d, want %d", id, want)
		}
	}

	info, err := r.Class(tx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if info.Owner != alice || !bytes.Equal(info.Metadata, []byte("cid")) || info.Data != data || info.TotalIssuance != 0 {
		t.Fatalf("Class(1) = %+v", info)
	}

	evs := tx.Events()
	if len(evs) != 3 || evs[2].Kind != event.KindClassRegistered || evs[2].ClassID != 2 {
		t.Fatalf("events = %+v", evs)
	}
}

func TestCreateClassMetadataLimit(t *testing.T) {
	tx := newTx(t)
	r := New(4)

	if _, err := r.CreateClass(tx, alice, []byte("12345"), Data{}); !errors.Is(err, ErrMetadataTooLong) {
		t.Fatalf("CreateClass = %v, want ErrMetadataTooLong", err)
	}
	if next, _ := r.NextClassID(tx); next != 0 {
		t.Fatalf("rejected class advanced counter to %d", next)
	}
	if _, err := r.CreateClass(tx, alice, []byte("1234"), Data{}); err != nil {
		t.Fatalf("metadata at limit rejected: %v", err)
	}
}

func TestCreateClassExhausted(t *testing.T) {
	tx := newTx(t)
	r := New(0)
	if err := r.next.Put(tx, math.MaxUint64); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateClass(tx, alice, nil, Data{}); !errors.Is(err, ErrNoAvailableClassID) {
		t.Fatalf("CreateClass = %v, want ErrNoAvailableClassID", err)
	}
}

func TestClassesOwnedBy(t *testing.T) {
	tx := newTx(t)
	r := New(0)
	for _, owner := range []identity.AccountID{alice, bob, alice} {
		if _, err := r.CreateClass(tx, owner, nil, Data{}); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := r.ClassesOwnedBy(tx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("alice classes = %v", ids)
	}
	if ids, _ := r.ClassesOwnedBy(tx, identity.AccountID{0xcc}); len(ids) != 0 {
		t.Fatalf("unknown owner classes = %v", ids)
	}
}

func TestClassNotFound(t *testing.T) {
	tx := newTx(t)
	if _, err := New(0).Class(tx, 9); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("Class = %v, want ErrClassNotFound", err)
	}
}
