// Package guild keeps one named group record per owning account and the
// counter that assigns guild ids.
package guild

import (
	"errors"
	"fmt"
	"math"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// ErrNoGuildFound indicates the caller owns no guild.
var ErrNoGuildFound = errors.New("no guild found")

// FirstID is the id assigned to the first guild.
const FirstID ID = 1

// ID identifies a guild.
type ID = uint64

// Guild is a named group record.
type Guild struct {
	ID      ID                   `cbor:"1,keyasint"`
	Name    []byte               `cbor:"2,keyasint"`
	Members []identity.AccountID `cbor:"3,keyasint"`
}

// Update is the payload of an update request.
type Update struct {
	Name    []byte               `cbor:"1,keyasint"`
	Members []identity.AccountID `cbor:"2,keyasint"`
}

// Registry maps owning accounts to guilds.
type Registry struct {
	guilds state.Map[identity.AccountID, Guild]
	next   state.Value[ID]
}

// New returns a registry over the "guild/" keyspace.
func New() *Registry {
	return &Registry{
		guilds: state.NewMap[identity.AccountID, Guild]("guild/by-owner/", state.AccountKey{}),
		next:   state.NewValue("guild/next", FirstID),
	}
}

// CreateGuild stores a new, memberless guild for caller under the next id.
// An existing guild owned by caller is replaced. The counter advances after
// the record is written.
func (r *Registry) CreateGuild(tx *state.Tx, caller identity.AccountID, name []byte) (ID, error) {
	id, err := r.next.Get(tx)
	if err != nil {
		return 0, err
	}
	if id == math.MaxUint64 {
		return 0, fmt.Errorf("next guild id: %w", arcerrors.ErrOverflow)
	}

	g := Guild{ID: id, Name: name, Members: []identity.AccountID{}}
	if err := r.guilds.Insert(tx, caller, g); err != nil {
		return 0, err
	}
	tx.Emit(event.GuildCreated(g.ID, g.Name, caller))

	if err := r.next.Put(tx, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateGuild accepts an update from the owner of a guild and records it as
// an event. guildID is reported as given; it is not checked against the
// caller's stored guild, and the stored record is left unchanged.
func (r *Registry) UpdateGuild(tx *state.Tx, caller identity.AccountID, guildID ID, update Update) error {
	ok, err := r.guilds.Contains(tx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("update guild %d by %s: %w", guildID, caller.Short(), ErrNoGuildFound)
	}
	tx.Emit(event.GuildUpdated(guildID, update.Name))
	return nil
}

// Guild returns the guild owned by owner.
func (r *Registry) Guild(tx *state.Tx, owner identity.AccountID) (Guild, error) {
	g, ok, err := r.guilds.Get(tx, owner)
	if err != nil {
		return Guild{}, err
	}
	if !ok {
		return Guild{}, fmt.Errorf("guild of %s: %w", owner.Short(), ErrNoGuildFound)
	}
	return g, nil
}

// NextGuildID returns the id the next CreateGuild will assign.
func (r *Registry) NextGuildID(tx *state.Tx) (ID, error) {
	return r.next.Get(tx)
}
