package factory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/currency"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
	"github.com/gezibash/arc-ledger/internal/statestore/physical/memory"
	"github.com/gezibash/arc-ledger/pkg/balance"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

var (
	testModule = ModuleID{'a', 'r', 'c', '/', 'n', 'f', 't', 'c'}
	creator    = identity.AccountID{0xc0}
	deposit    = balance.New(500)
)

type fixture struct {
	tx          *state.Tx
	txn         physical.Txn
	currency    *currency.Currency
	delegations *delegation.Registry
	classes     *assetclass.Registry
	factory     *Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	be := memory.New()
	t.Cleanup(func() { be.Close() })
	txn, err := be.Begin(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(txn.Discard)

	f := &fixture{
		tx:          state.NewTx(context.Background(), txn),
		txn:         txn,
		currency:    currency.New(),
		delegations: delegation.New(0),
		classes:     assetclass.New(0),
	}
	f.factory = New(Config{ModuleID: testModule, ClassDeposit: deposit}, f.currency, f.delegations, f.classes)
	return f
}

// dump captures every stored key and value.
func dump(t *testing.T, txn physical.Txn) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	if err := txn.Iterate(nil, func(k, v []byte) error {
		out[string(k)] = v
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return out
}

func sameState(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !bytes.Equal(v, b[k]) {
			return false
		}
	}
	return true
}

func TestCreateClass(t *testing.T) {
	f := newFixture(t)
	if err := f.currency.Deposit(f.tx, creator, balance.New(2000)); err != nil {
		t.Fatal(err)
	}
	before := len(f.tx.Events())

	props := assetclass.Properties{Transferable: true, Burnable: false}
	custody, classID, err := f.factory.CreateClass(f.tx, creator, []byte("bafy..."), props)
	if err != nil {
		t.Fatal(err)
	}
	if classID != 0 || custody != CustodyAccount(testModule, 0) {
		t.Fatalf("CreateClass = %s, %d", custody.Short(), classID)
	}

	if got, _ := f.currency.FreeBalance(f.tx, creator); got != balance.New(1500) {
		t.Errorf("creator free = %s, want 1500", got)
	}
	acct, _ := f.currency.Account(f.tx, custody)
	if acct.Reserved != deposit || !acct.Free.IsZero() {
		t.Errorf("custody = %+v, want reserved %s", acct, deposit)
	}

	ok, err := f.delegations.IsDelegate(f.tx, custody, creator, delegation.KindAny)
	if err != nil || !ok {
		t.Errorf("creator is not a delegate of custody: %v", err)
	}
	list, _ := f.delegations.Delegates(f.tx, custody)
	if len(list) != 1 || list[0].Delay != 0 || list[0].Kind != delegation.KindAny {
		t.Errorf("delegations = %+v", list)
	}

	info, err := f.classes.Class(f.tx, classID)
	if err != nil {
		t.Fatal(err)
	}
	if info.Owner != custody || info.Data.Deposit != deposit || info.Data.Properties != props {
		t.Errorf("class = %+v", info)
	}

	created := 0
	for _, e := range f.tx.Events()[before:] {
		if e.Kind == event.KindClassCreated {
			created++
			if e.Account != custody || e.ClassID != classID {
				t.Errorf("event = %+v", e)
			}
		}
	}
	if created != 1 {
		t.Errorf("class.created emitted %d times", created)
	}
}

func TestCreateClassInsufficientBalanceChangesNothing(t *testing.T) {
	f := newFixture(t)
	if err := f.currency.Deposit(f.tx, creator, balance.New(499)); err != nil {
		t.Fatal(err)
	}
	snapshot := dump(t, f.txn)
	events := len(f.tx.Events())

	_, _, err := f.factory.CreateClass(f.tx, creator, nil, assetclass.Properties{Transferable: true})
	if !errors.Is(err, arcerrors.ErrInsufficientBalance) {
		t.Fatalf("CreateClass = %v, want ErrInsufficientBalance", err)
	}

	if !sameState(snapshot, dump(t, f.txn)) {
		t.Fatal("state changed after failed CreateClass")
	}
	if len(f.tx.Events()) != events {
		t.Fatal("events emitted by failed CreateClass")
	}
	if next, _ := f.classes.NextClassID(f.tx); next != 0 {
		t.Fatalf("class id consumed: next = %d", next)
	}
	if ok, _ := f.currency.Exists(f.tx, CustodyAccount(testModule, 0)); ok {
		t.Fatal("custody account created")
	}
}

func TestCreateClassLateFailureRollsBackEarlierSteps(t *testing.T) {
	f := newFixture(t)
	f.classes = assetclass.New(2)
	f.factory = New(Config{ModuleID: testModule, ClassDeposit: deposit}, f.currency, f.delegations, f.classes)
	if err := f.currency.Deposit(f.tx, creator, balance.New(1000)); err != nil {
		t.Fatal(err)
	}
	snapshot := dump(t, f.txn)
	events := len(f.tx.Events())

	// Registration is the last step; transfer, reserve and delegation have
	// already been applied when it fails.
	_, _, err := f.factory.CreateClass(f.tx, creator, []byte("too long"), assetclass.Properties{})
	if !errors.Is(err, ErrFailedToCreateClass) || !errors.Is(err, assetclass.ErrMetadataTooLong) {
		t.Fatalf("CreateClass = %v", err)
	}
	if !sameState(snapshot, dump(t, f.txn)) {
		t.Fatal("partial writes survived failed CreateClass")
	}
	if len(f.tx.Events()) != events {
		t.Fatal("events survived failed CreateClass")
	}
}

func TestCreateClassReservesResidualBalance(t *testing.T) {
	f := newFixture(t)
	custody := CustodyAccount(testModule, 0)
	if err := f.currency.Deposit(f.tx, creator, balance.New(1000)); err != nil {
		t.Fatal(err)
	}
	if err := f.currency.Deposit(f.tx, custody, balance.New(7)); err != nil {
		t.Fatal(err)
	}

	if _, _, err := f.factory.CreateClass(f.tx, creator, nil, assetclass.Properties{}); err != nil {
		t.Fatal(err)
	}
	acct, _ := f.currency.Account(f.tx, custody)
	if acct.Reserved != balance.New(507) || !acct.Free.IsZero() {
		t.Fatalf("custody = %+v, want everything reserved", acct)
	}
}

func TestCreateClassSequentialCustodyAccounts(t *testing.T) {
	f := newFixture(t)
	if err := f.currency.Deposit(f.tx, creator, balance.New(5000)); err != nil {
		t.Fatal(err)
	}
	seen := make(map[identity.AccountID]bool)
	for want := assetclass.ClassID(0); want < 4; want++ {
		custody, id, err := f.factory.CreateClass(f.tx, creator, nil, assetclass.Properties{})
		if err != nil {
			t.Fatal(err)
		}
		if id != want || seen[custody] {
			t.Fatalf("class %d: id %d, custody reused %v", want, id, seen[custody])
		}
		seen[custody] = true
	}
	ids, _ := f.classes.ClassesOwnedBy(f.tx, CustodyAccount(testModule, 2))
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("classes owned by custody 2 = %v", ids)
	}
}

func TestCustodyAccountDeterministic(t *testing.T) {
	for _, id := range []uint64{0, 1, 255, 256, 1 << 32, ^uint64(0)} {
		if CustodyAccount(testModule, id) != CustodyAccount(testModule, id) {
			t.Fatalf("CustodyAccount(%d) not deterministic", id)
		}
	}

	got := CustodyAccount(testModule, 0x0102)
	want := identity.AccountID{'m', 'o', 'd', 'l', 'a', 'r', 'c', '/', 'n', 'f', 't', 'c', 0x02, 0x01}
	if got != want {
		t.Fatalf("CustodyAccount = %x, want %x", got, want)
	}
}

func TestCustodyAccountInjective(t *testing.T) {
	seen := make(map[identity.AccountID]uint64)
	for id := uint64(0); id < 100_000; id++ {
		acct := CustodyAccount(testModule, id)
		if prev, ok := seen[acct]; ok {
			t.Fatalf("class %d and %d share custody account", prev, id)
		}
		seen[acct] = id
	}
	other := ModuleID{'o', 't', 'h', 'e', 'r', '/', 'm', 'd'}
	if CustodyAccount(other, 1) == CustodyAccount(testModule, 1) {
		t.Fatal("different modules share custody account")
	}
}

func TestParseModuleID(t *testing.T) {
	id, err := ParseModuleID("arc/nftc")
	if err != nil || id != testModule || id.String() != "arc/nftc" {
		t.Fatalf("ParseModuleID = %v, %v", id, err)
	}
	if _, err := ParseModuleID("short"); !errors.Is(err, arcerrors.ErrInvalidInput) {
		t.Fatalf("ParseModuleID(short) = %v", err)
	}
}

// failingDelegations rejects every grant.
type failingDelegations struct{}

func (failingDelegations) AddDelegate(*state.Tx, identity.AccountID, identity.AccountID, delegation.Kind, uint64) error {
	return delegation.ErrTooManyDelegates
}

func TestCreateClassDelegationFailure(t *testing.T) {
	f := newFixture(t)
	f.factory = New(Config{ModuleID: testModule, ClassDeposit: deposit}, f.currency, failingDelegations{}, f.classes)
	if err := f.currency.Deposit(f.tx, creator, balance.New(1000)); err != nil {
		t.Fatal(err)
	}
	snapshot := dump(t, f.txn)

	if _, _, err := f.factory.CreateClass(f.tx, creator, nil, assetclass.Properties{}); !errors.Is(err, delegation.ErrTooManyDelegates) {
		t.Fatalf("CreateClass = %v", err)
	}
	if !sameState(snapshot, dump(t, f.txn)) {
		t.Fatal("transfer or reservation survived a failed delegation")
	}
}
