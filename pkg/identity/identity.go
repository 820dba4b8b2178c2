// Package identity provides algorithm-tagged public keys, signatures, and
// the 32-byte account identifiers the ledger keys its state by.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm identifies a signing algorithm.
type Algorithm string

// AlgEd25519 is the only algorithm accepted for signed calls.
const AlgEd25519 Algorithm = "ed25519"

// PublicKey is an algorithm-tagged public key.
type PublicKey struct {
	Algo  Algorithm `cbor:"1,keyasint"`
	Bytes []byte    `cbor:"2,keyasint"`
}

// Signature is an algorithm-tagged signature.
type Signature struct {
	Algo  Algorithm `cbor:"1,keyasint"`
	Bytes []byte    `cbor:"2,keyasint"`
}

// Signer represents a private key capable of signing.
type Signer interface {
	PublicKey() PublicKey
	Sign(payload []byte) (Signature, error)
	Algorithm() Algorithm
}

var (
	// ErrUnknownAlgorithm indicates an unknown algorithm.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	// ErrInvalidEncoding indicates an invalid encoded key, signature, or account.
	ErrInvalidEncoding = errors.New("invalid encoding")
)

// AccountIDSize is the width of an account identifier.
const AccountIDSize = 32

// AccountID identifies a ledger account. Signed accounts are derived from a
// public key; custody accounts are derived from a module identifier.
type AccountID [AccountIDSize]byte

// AccountFromPublicKey derives the account controlled by pk as
// BLAKE2b-256(algo || 0x00 || key bytes).
func AccountFromPublicKey(pk PublicKey) AccountID {
	algo := pk.Algo
	if algo == "" {
		algo = AlgEd25519
	}
	h, _ := blake2b.New256(nil)
	_, _ = h.Write([]byte(algo))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(pk.Bytes)
	var out AccountID
	copy(out[:], h.Sum(nil))
	return out
}

// ParseAccountID accepts either a 64-character hex account id or an encoded
// public key ("algo:hex"), which is converted with AccountFromPublicKey.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		pk, err := DecodePublicKey(s)
		if err != nil {
			return AccountID{}, err
		}
		return AccountFromPublicKey(pk), nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(raw) != AccountIDSize {
		return AccountID{}, ErrInvalidEncoding
	}
	var out AccountID
	copy(out[:], raw)
	return out, nil
}

// String returns the hex encoding.
func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns an abbreviated hex form for logs.
func (a AccountID) Short() string {
	return hex.EncodeToString(a[:6]) + "..."
}

// IsZero reports whether a is the all-zero account.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// EncodePublicKey encodes a public key as "algo:hex".
func EncodePublicKey(pk PublicKey) string {
	algo := strings.ToLower(string(pk.Algo))
	if algo == "" {
		algo = string(AlgEd25519)
	}
	return algo + ":" + hex.EncodeToString(pk.Bytes)
}

// DecodePublicKey decodes a public key from "algo:hex".
// If no algorithm prefix is present, defaults to ed25519.
func DecodePublicKey(s string) (PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PublicKey{}, ErrInvalidEncoding
	}
	algo, hexPart, ok := strings.Cut(s, ":")
	if !ok {
		algo = string(AlgEd25519)
		hexPart = s
	}
	algo = strings.ToLower(strings.TrimSpace(algo))
	if Algorithm(algo) != AlgEd25519 {
		return PublicKey{}, ErrUnknownAlgorithm
	}
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return PublicKey{}, ErrInvalidEncoding
	}
	return PublicKey{Algo: Algorithm(algo), Bytes: raw}, nil
}

// Verify checks a signature over the given payload.
func Verify(pub PublicKey, payload []byte, sig Signature) bool {
	algo := pub.Algo
	if algo == "" {
		algo = AlgEd25519
	}
	if sig.Algo != "" && algo != sig.Algo {
		return false
	}

	switch algo {
	case AlgEd25519:
		if len(pub.Bytes) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(pub.Bytes, payload, sig.Bytes)
	default:
		return false
	}
}
