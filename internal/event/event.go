// Package event defines the events emitted by ledger calls and the sinks
// they are emitted into.
package event

import (
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// Kind names an event variant.
type Kind string

const (
	KindGuildCreated        Kind = "guild.created"
	KindGuildUpdated        Kind = "guild.updated"
	KindClassCreated        Kind = "class.created"
	KindCurrencyTransferred Kind = "currency.transferred"
	KindCurrencyReserved    Kind = "currency.reserved"
	KindCurrencyUnreserved  Kind = "currency.unreserved"
	KindCurrencyDeposited   Kind = "currency.deposited"
	KindDelegationAdded     Kind = "delegation.added"
	KindDelegationRemoved   Kind = "delegation.removed"
	KindClassRegistered     Kind = "class.registered"
)

// Event is a tagged union. Kind selects which of the remaining fields are
// meaningful; use the constructors rather than building events by hand.
type Event struct {
	Kind           Kind               `cbor:"1,keyasint"`
	GuildID        uint64             `cbor:"2,keyasint,omitempty"`
	ClassID        uint64             `cbor:"3,keyasint,omitempty"`
	Name           []byte             `cbor:"4,keyasint,omitempty"`
	Account        identity.AccountID `cbor:"5,keyasint"`
	Counterparty   identity.AccountID `cbor:"6,keyasint"`
	Amount         balance.Amount     `cbor:"7,keyasint"`
	DelegationKind string             `cbor:"8,keyasint,omitempty"`
	Delay          uint64             `cbor:"9,keyasint,omitempty"`
}

// GuildCreated reports a new guild record owned by creator.
func GuildCreated(id uint64, name []byte, creator identity.AccountID) Event {
	return Event{Kind: KindGuildCreated, GuildID: id, Name: name, Account: creator}
}

// GuildUpdated reports an accepted guild update.
func GuildUpdated(id uint64, name []byte) Event {
	return Event{Kind: KindGuildUpdated, GuildID: id, Name: name}
}

// ClassCreated reports a class created through the factory, owned by its
// custody account.
func ClassCreated(custody identity.AccountID, classID uint64) Event {
	return Event{Kind: KindClassCreated, Account: custody, ClassID: classID}
}

// Transferred reports a movement of free balance.
func Transferred(from, to identity.AccountID, amount balance.Amount) Event {
	return Event{Kind: KindCurrencyTransferred, Account: from, Counterparty: to, Amount: amount}
}

// Reserved reports free balance moved to reserved.
func Reserved(who identity.AccountID, amount balance.Amount) Event {
	return Event{Kind: KindCurrencyReserved, Account: who, Amount: amount}
}

// Unreserved reports reserved balance moved back to free.
func Unreserved(who identity.AccountID, amount balance.Amount) Event {
	return Event{Kind: KindCurrencyUnreserved, Account: who, Amount: amount}
}

// Deposited reports newly issued balance.
func Deposited(who identity.AccountID, amount balance.Amount) Event {
	return Event{Kind: KindCurrencyDeposited, Account: who, Amount: amount}
}

// DelegationAdded reports a delegate granted control of owner.
func DelegationAdded(owner, delegate identity.AccountID, kind string, delay uint64) Event {
	return Event{Kind: KindDelegationAdded, Account: owner, Counterparty: delegate, DelegationKind: kind, Delay: delay}
}

// DelegationRemoved reports a revoked delegation.
func DelegationRemoved(owner, delegate identity.AccountID, kind string, delay uint64) Event {
	return Event{Kind: KindDelegationRemoved, Account: owner, Counterparty: delegate, DelegationKind: kind, Delay: delay}
}

// ClassRegistered reports a new asset-class record.
func ClassRegistered(classID uint64, owner identity.AccountID) Event {
	return Event{Kind: KindClassRegistered, ClassID: classID, Account: owner}
}

// AttributeKeys lists the attribute names filters may reference.
var AttributeKeys = map[string]bool{
	"kind":            true,
	"guild_id":        true,
	"class_id":        true,
	"name":            true,
	"account":         true,
	"counterparty":    true,
	"amount":          true,
	"delegation_kind": true,
	"delay":           true,
}

// Attributes flattens the fields meaningful for e.Kind into a map suitable
// for filter evaluation. Fields that do not apply to the kind are absent.
// Identifiers are exposed as CEL ints and accounts as lowercase hex.
func (e Event) Attributes() map[string]any {
	attrs := map[string]any{"kind": string(e.Kind)}
	switch e.Kind {
	case KindGuildCreated:
		attrs["guild_id"] = int64(e.GuildID)
		attrs["name"] = string(e.Name)
		attrs["account"] = e.Account.String()
	case KindGuildUpdated:
		attrs["guild_id"] = int64(e.GuildID)
		attrs["name"] = string(e.Name)
	case KindClassCreated, KindClassRegistered:
		attrs["class_id"] = int64(e.ClassID)
		attrs["account"] = e.Account.String()
	case KindCurrencyTransferred:
		attrs["account"] = e.Account.String()
		attrs["counterparty"] = e.Counterparty.String()
		attrs["amount"] = e.Amount.String()
	case KindCurrencyReserved, KindCurrencyUnreserved, KindCurrencyDeposited:
		attrs["account"] = e.Account.String()
		attrs["amount"] = e.Amount.String()
	case KindDelegationAdded, KindDelegationRemoved:
		attrs["account"] = e.Account.String()
		attrs["counterparty"] = e.Counterparty.String()
		attrs["delegation_kind"] = e.DelegationKind
		attrs["delay"] = int64(e.Delay)
	}
	return attrs
}

// Sink receives events. Emission is fire-and-forget.
type Sink interface {
	Emit(Event)
}

// Buffer is a Sink that holds events in emission order until the enclosing
// transaction decides their fate.
type Buffer struct {
	events []Event
}

// Emit appends e.
func (b *Buffer) Emit(e Event) {
	b.events = append(b.events, e)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Truncate drops every event after the first n.
func (b *Buffer) Truncate(n int) {
	if n < len(b.events) {
		b.events = b.events[:n]
	}
}

// Reset drops all events.
func (b *Buffer) Reset() {
	b.events = nil
}
