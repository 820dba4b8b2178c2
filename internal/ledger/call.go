package ledger

import (
	"fmt"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/codec"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/pkg/balance"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// CallKind names a dispatchable call.
type CallKind string

const (
	CallCreateGuild    CallKind = "create_guild"
	CallUpdateGuild    CallKind = "update_guild"
	CallCreateClass    CallKind = "create_class"
	CallRemoveDelegate CallKind = "remove_delegate"
	CallTransfer       CallKind = "transfer"
)

// CallKinds lists every dispatchable call in a stable order.
var CallKinds = []CallKind{
	CallCreateGuild,
	CallUpdateGuild,
	CallCreateClass,
	CallRemoveDelegate,
	CallTransfer,
}

// Call is a tagged union. Kind selects which of the remaining fields are
// read; use the constructors.
type Call struct {
	Kind       CallKind              `cbor:"1,keyasint"`
	Name       []byte                `cbor:"2,keyasint,omitempty"`
	GuildID    guild.ID              `cbor:"3,keyasint,omitempty"`
	Members    []identity.AccountID  `cbor:"4,keyasint,omitempty"`
	Metadata   []byte                `cbor:"5,keyasint,omitempty"`
	Properties assetclass.Properties `cbor:"6,keyasint"`
	Owner      identity.AccountID    `cbor:"7,keyasint"`
	Delegate   identity.AccountID    `cbor:"8,keyasint"`
	Delegation delegation.Kind       `cbor:"9,keyasint,omitempty"`
	Delay      uint64                `cbor:"10,keyasint,omitempty"`
	To         identity.AccountID    `cbor:"11,keyasint"`
	Amount     balance.Amount        `cbor:"12,keyasint"`
}

// CreateGuild builds a create_guild call.
func CreateGuild(name []byte) Call {
	return Call{Kind: CallCreateGuild, Name: name}
}

// UpdateGuild builds an update_guild call.
func UpdateGuild(id guild.ID, update guild.Update) Call {
	return Call{Kind: CallUpdateGuild, GuildID: id, Name: update.Name, Members: update.Members}
}

// CreateClass builds a create_class call.
func CreateClass(metadata []byte, props assetclass.Properties) Call {
	return Call{Kind: CallCreateClass, Metadata: metadata, Properties: props}
}

// RemoveDelegate builds a remove_delegate call revoking the grant from owner
// to delegate.
func RemoveDelegate(owner, delegate identity.AccountID, kind delegation.Kind, delay uint64) Call {
	return Call{Kind: CallRemoveDelegate, Owner: owner, Delegate: delegate, Delegation: kind, Delay: delay}
}

// Transfer builds a transfer call.
func Transfer(to identity.AccountID, amount balance.Amount) Call {
	return Call{Kind: CallTransfer, To: to, Amount: amount}
}

// Update returns the guild update carried by an update_guild call.
func (c Call) Update() guild.Update {
	return guild.Update{Name: c.Name, Members: c.Members}
}

// Encode returns the canonical encoding that is signed and submitted.
func (c Call) Encode() ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return codec.Marshal(c)
}

// DecodeCall decodes and validates an encoded call.
func DecodeCall(data []byte) (Call, error) {
	var c Call
	if err := codec.Unmarshal(data, &c); err != nil {
		return Call{}, fmt.Errorf("decode call: %w", arcerrors.ErrInvalidInput)
	}
	if err := c.validate(); err != nil {
		return Call{}, err
	}
	return c, nil
}

func (c Call) validate() error {
	switch c.Kind {
	case CallCreateGuild, CallUpdateGuild, CallCreateClass:
		return nil
	case CallRemoveDelegate:
		if _, err := delegation.ParseKind(string(c.Delegation)); err != nil {
			return err
		}
		return nil
	case CallTransfer:
		if c.To.IsZero() {
			return fmt.Errorf("transfer to zero account: %w", arcerrors.ErrInvalidInput)
		}
		return nil
	}
	return fmt.Errorf("call kind %q: %w", c.Kind, arcerrors.ErrInvalidInput)
}
