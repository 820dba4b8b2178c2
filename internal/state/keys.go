package state

import (
	"encoding/binary"
	"fmt"

	"github.com/gezibash/arc-ledger/pkg/identity"
)

// KeyCodec maps a map key to bytes whose ordering matches the key ordering.
type KeyCodec[K any] interface {
	Encode(K) []byte
	Decode([]byte) (K, error)
}

// Uint64Key encodes uint64 keys big-endian so iteration is numeric.
type Uint64Key struct{}

func (Uint64Key) Encode(k uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, k)
}

func (Uint64Key) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("uint64 key: want 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// AccountKey encodes account ids as their raw 32 bytes.
type AccountKey struct{}

func (AccountKey) Encode(k identity.AccountID) []byte {
	return append([]byte(nil), k[:]...)
}

func (AccountKey) Decode(b []byte) (identity.AccountID, error) {
	var id identity.AccountID
	if len(b) != len(id) {
		return id, fmt.Errorf("account key: want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// AccountUint64 is a composite key of an account and a number, used for
// per-account secondary indexes.
type AccountUint64 struct {
	Account identity.AccountID
	N       uint64
}

// AccountUint64Key encodes AccountUint64 as account || big-endian number.
type AccountUint64Key struct{}

func (AccountUint64Key) Encode(k AccountUint64) []byte {
	out := make([]byte, 0, identity.AccountIDSize+8)
	out = append(out, k.Account[:]...)
	return binary.BigEndian.AppendUint64(out, k.N)
}

func (AccountUint64Key) Decode(b []byte) (AccountUint64, error) {
	if len(b) != identity.AccountIDSize+8 {
		return AccountUint64{}, fmt.Errorf("account/uint64 key: want %d bytes, got %d", identity.AccountIDSize+8, len(b))
	}
	var k AccountUint64
	copy(k.Account[:], b[:identity.AccountIDSize])
	k.N = binary.BigEndian.Uint64(b[identity.AccountIDSize:])
	return k, nil
}
