// Package assetclass allocates class identifiers and stores class records.
package assetclass

import (
	"errors"
	"fmt"
	"math"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// DefaultMaxMetadata bounds class metadata in bytes.
const DefaultMaxMetadata = 256

var (
	// ErrNoAvailableClassID indicates the class id space is exhausted.
	ErrNoAvailableClassID = errors.New("no available class id")
	// ErrMetadataTooLong indicates metadata over the configured limit.
	ErrMetadataTooLong = errors.New("metadata too long")
	// ErrClassNotFound indicates no class has the given id.
	ErrClassNotFound = errors.New("class not found")
)

// ClassID identifies an asset class.
type ClassID = uint64

// Properties are policy flags fixed when a class is created.
type Properties struct {
	Transferable bool `cbor:"1,keyasint"`
	Burnable     bool `cbor:"2,keyasint"`
}

// Data is the payload stored with a class.
type Data struct {
	Deposit    balance.Amount `cbor:"1,keyasint"`
	Properties Properties     `cbor:"2,keyasint"`
}

// Info is a class record.
type Info struct {
	Metadata      []byte             `cbor:"1,keyasint"`
	TotalIssuance uint64             `cbor:"2,keyasint"`
	Owner         identity.AccountID `cbor:"3,keyasint"`
	Data          Data               `cbor:"4,keyasint"`
}

// Registry is the class store.
type Registry struct {
	next        state.Value[ClassID]
	classes     state.Map[ClassID, Info]
	owned       state.Map[state.AccountUint64, struct{}]
	maxMetadata int
}

// New returns a registry accepting metadata up to maxMetadata bytes. Zero
// selects DefaultMaxMetadata.
func New(maxMetadata int) *Registry {
	if maxMetadata <= 0 {
		maxMetadata = DefaultMaxMetadata
	}
	return &Registry{
		next:        state.NewValue[ClassID]("class/next", 0),
		classes:     state.NewMap[ClassID, Info]("class/info/", state.Uint64Key{}),
		owned:       state.NewMap[state.AccountUint64, struct{}]("class/owner/", state.AccountUint64Key{}),
		maxMetadata: maxMetadata,
	}
}

// NextClassID returns the id the next CreateClass will assign.
func (r *Registry) NextClassID(tx *state.Tx) (ClassID, error) {
	return r.next.Get(tx)
}

// CreateClass stores a class owned by owner under the next id and returns
// that id.
func (r *Registry) CreateClass(tx *state.Tx, owner identity.AccountID, metadata []byte, data Data) (ClassID, error) {
	if len(metadata) > r.maxMetadata {
		return 0, fmt.Errorf("class metadata is %d bytes, limit %d: %w", len(metadata), r.maxMetadata, ErrMetadataTooLong)
	}
	id, err := r.next.Get(tx)
	if err != nil {
		return 0, err
	}
	if id == math.MaxUint64 {
		return 0, ErrNoAvailableClassID
	}

	info := Info{Metadata: metadata, Owner: owner, Data: data}
	if err := r.classes.Insert(tx, id, info); err != nil {
		return 0, err
	}
	if err := r.owned.Insert(tx, state.AccountUint64{Account: owner, N: id}, struct{}{}); err != nil {
		return 0, err
	}
	if err := r.next.Put(tx, id+1); err != nil {
		return 0, err
	}
	tx.Emit(event.ClassRegistered(id, owner))
	return id, nil
}

// Class returns the record for id.
func (r *Registry) Class(tx *state.Tx, id ClassID) (Info, error) {
	info, ok, err := r.classes.Get(tx, id)
	if err != nil {
		return Info{}, err
	}
	if !ok {
		return Info{}, fmt.Errorf("class %d: %w", id, ErrClassNotFound)
	}
	return info, nil
}

// ClassesOwnedBy returns the ids of classes owned by owner in ascending order.
func (r *Registry) ClassesOwnedBy(tx *state.Tx, owner identity.AccountID) ([]ClassID, error) {
	var ids []ClassID
	err := r.owned.IterateFrom(tx, state.AccountKey{}.Encode(owner), func(k state.AccountUint64, _ struct{}) error {
		ids = append(ids, k.N)
		return nil
	})
	return ids, err
}
