// Package origin authenticates signed calls and enforces per-account nonces.
package origin

import (
	"errors"
	"fmt"

	"github.com/gezibash/arc-ledger/internal/codec"
	"github.com/gezibash/arc-ledger/internal/state"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

var (
	// ErrStaleNonce indicates a nonce that was already used.
	ErrStaleNonce = errors.New("stale nonce")
	// ErrFutureNonce indicates a nonce ahead of the account's next nonce.
	ErrFutureNonce = errors.New("future nonce")
)

// signingDomain separates call signatures from any other use of the same key.
const signingDomain = "arc-ledger/call/v1"

// SignedCall is an encoded call with the signature of the account submitting it.
type SignedCall struct {
	Signer    identity.PublicKey `cbor:"1,keyasint"`
	Nonce     uint64             `cbor:"2,keyasint"`
	Call      []byte             `cbor:"3,keyasint"`
	Signature identity.Signature `cbor:"4,keyasint"`
}

// Account returns the account the call claims to come from.
func (sc SignedCall) Account() identity.AccountID {
	return identity.AccountFromPublicKey(sc.Signer)
}

type payload struct {
	Domain  string             `cbor:"1,keyasint"`
	ChainID string             `cbor:"2,keyasint"`
	Signer  identity.PublicKey `cbor:"3,keyasint"`
	Nonce   uint64             `cbor:"4,keyasint"`
	Call    []byte             `cbor:"5,keyasint"`
}

// SigningPayload returns the bytes a signer signs for a call on chainID.
func SigningPayload(chainID string, signer identity.PublicKey, nonce uint64, call []byte) ([]byte, error) {
	return codec.Marshal(payload{
		Domain:  signingDomain,
		ChainID: chainID,
		Signer:  signer,
		Nonce:   nonce,
		Call:    call,
	})
}

// Sign produces a SignedCall for call.
func Sign(signer identity.Signer, chainID string, nonce uint64, call []byte) (SignedCall, error) {
	pub := signer.PublicKey()
	msg, err := SigningPayload(chainID, pub, nonce, call)
	if err != nil {
		return SignedCall{}, err
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return SignedCall{}, fmt.Errorf("sign call: %w", err)
	}
	return SignedCall{Signer: pub, Nonce: nonce, Call: call, Signature: sig}, nil
}

// Verifier checks signatures and tracks nonces.
type Verifier struct {
	chainID string
	nonces  state.Map[identity.AccountID, uint64]
}

// NewVerifier returns a verifier for calls signed for chainID.
func NewVerifier(chainID string) *Verifier {
	return &Verifier{
		chainID: chainID,
		nonces:  state.NewMap[identity.AccountID, uint64]("origin/nonce/", state.AccountKey{}),
	}
}

// ChainID returns the chain id calls must be signed for.
func (v *Verifier) ChainID() string {
	return v.chainID
}

// Verify authenticates sc and consumes its nonce, returning the signing
// account. Nothing is written when verification fails.
func (v *Verifier) Verify(tx *state.Tx, sc SignedCall) (identity.AccountID, error) {
	msg, err := SigningPayload(v.chainID, sc.Signer, sc.Nonce, sc.Call)
	if err != nil {
		return identity.AccountID{}, err
	}
	if !identity.Verify(sc.Signer, msg, sc.Signature) {
		return identity.AccountID{}, fmt.Errorf("verify signature: %w", arcerrors.ErrBadOrigin)
	}

	who := sc.Account()
	err = v.nonces.Mutate(tx, who, func(next *uint64, _ bool) error {
		switch {
		case sc.Nonce < *next:
			return fmt.Errorf("nonce %d for %s, next is %d: %w", sc.Nonce, who.Short(), *next, ErrStaleNonce)
		case sc.Nonce > *next:
			return fmt.Errorf("nonce %d for %s, next is %d: %w", sc.Nonce, who.Short(), *next, ErrFutureNonce)
		}
		*next++
		return nil
	})
	if err != nil {
		return identity.AccountID{}, err
	}
	return who, nil
}

// Nonce returns the next nonce expected from who.
func (v *Verifier) Nonce(tx *state.Tx, who identity.AccountID) (uint64, error) {
	n, _, err := v.nonces.Get(tx, who)
	return n, err
}
