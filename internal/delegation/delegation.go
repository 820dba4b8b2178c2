// Package delegation records which accounts may act on behalf of others.
// Only grants, revocations and lookups are kept here; executing calls on
// behalf of an owner is not.
package delegation

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// DefaultMaxDelegates bounds the delegations one owner may grant.
const DefaultMaxDelegates = 32

var (
	// ErrDuplicateDelegate indicates the exact delegation already exists.
	ErrDuplicateDelegate = errors.New("duplicate delegate")
	// ErrTooManyDelegates indicates the owner is at its delegation limit.
	ErrTooManyDelegates = errors.New("too many delegates")
	// ErrDelegateNotFound indicates no matching delegation exists.
	ErrDelegateNotFound = errors.New("delegate not found")
	// ErrSelfDelegation indicates an account tried to delegate to itself.
	ErrSelfDelegation = errors.New("cannot delegate to self")
)

// Kind scopes what a delegate may do.
type Kind string

const (
	// KindAny permits everything. It is the default kind.
	KindAny Kind = "any"
	// KindNonTransfer permits everything except balance transfers.
	KindNonTransfer Kind = "non_transfer"
	// KindGovernance permits governance actions only.
	KindGovernance Kind = "governance"
)

// ParseKind validates a kind name. An empty name selects KindAny.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindAny:
		return KindAny, nil
	case KindNonTransfer, KindGovernance:
		return Kind(s), nil
	}
	return "", fmt.Errorf("delegation kind %q: %w", s, arcerrors.ErrInvalidInput)
}

// Permits reports whether a delegation of kind k covers want.
func (k Kind) Permits(want Kind) bool {
	return k == KindAny || k == want
}

// Delegation is one grant from an owner.
type Delegation struct {
	Delegate identity.AccountID `cbor:"1,keyasint"`
	Kind     Kind               `cbor:"2,keyasint"`
	Delay    uint64             `cbor:"3,keyasint"`
}

func compare(a, b Delegation) int {
	if c := bytes.Compare(a.Delegate[:], b.Delegate[:]); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.Delay, b.Delay)
}

// Registry stores each owner's delegations sorted by delegate, kind, delay.
type Registry struct {
	delegations state.Map[identity.AccountID, []Delegation]
	max         int
}

// New returns a registry allowing at most maxDelegates grants per owner.
// Zero selects DefaultMaxDelegates.
func New(maxDelegates int) *Registry {
	if maxDelegates <= 0 {
		maxDelegates = DefaultMaxDelegates
	}
	return &Registry{
		delegations: state.NewMap[identity.AccountID, []Delegation]("delegation/", state.AccountKey{}),
		max:         maxDelegates,
	}
}

// AddDelegate grants delegate the right to act for owner.
func (r *Registry) AddDelegate(tx *state.Tx, owner, delegate identity.AccountID, kind Kind, delay uint64) error {
	if owner == delegate {
		return ErrSelfDelegation
	}
	if kind == "" {
		kind = KindAny
	}
	d := Delegation{Delegate: delegate, Kind: kind, Delay: delay}

	err := r.delegations.Mutate(tx, owner, func(list *[]Delegation, _ bool) error {
		i, found := slices.BinarySearchFunc(*list, d, compare)
		if found {
			return ErrDuplicateDelegate
		}
		if len(*list) >= r.max {
			return ErrTooManyDelegates
		}
		*list = slices.Insert(*list, i, d)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add delegate %s for %s: %w", delegate.Short(), owner.Short(), err)
	}
	tx.Emit(event.DelegationAdded(owner, delegate, string(kind), delay))
	return nil
}

// RemoveDelegate revokes a delegation previously granted by owner.
func (r *Registry) RemoveDelegate(tx *state.Tx, owner, delegate identity.AccountID, kind Kind, delay uint64) error {
	if kind == "" {
		kind = KindAny
	}
	d := Delegation{Delegate: delegate, Kind: kind, Delay: delay}

	list, _, err := r.delegations.Get(tx, owner)
	if err != nil {
		return err
	}
	i, found := slices.BinarySearchFunc(list, d, compare)
	if !found {
		return fmt.Errorf("remove delegate %s for %s: %w", delegate.Short(), owner.Short(), ErrDelegateNotFound)
	}
	list = slices.Delete(list, i, i+1)

	if len(list) == 0 {
		err = r.delegations.Remove(tx, owner)
	} else {
		err = r.delegations.Insert(tx, owner, list)
	}
	if err != nil {
		return err
	}
	tx.Emit(event.DelegationRemoved(owner, delegate, string(kind), delay))
	return nil
}

// Delegates returns the delegations granted by owner.
func (r *Registry) Delegates(tx *state.Tx, owner identity.AccountID) ([]Delegation, error) {
	list, _, err := r.delegations.Get(tx, owner)
	return list, err
}

// IsDelegate reports whether delegate may act for owner with the given kind.
func (r *Registry) IsDelegate(tx *state.Tx, owner, delegate identity.AccountID, kind Kind) (bool, error) {
	list, err := r.Delegates(tx, owner)
	if err != nil {
		return false, err
	}
	for _, d := range list {
		if d.Delegate == delegate && d.Kind.Permits(kind) {
			return true, nil
		}
	}
	return false, nil
}
