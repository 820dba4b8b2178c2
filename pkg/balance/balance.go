// Package balance provides an unsigned 128-bit amount with checked arithmetic.
package balance

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/fxamacker/cbor/v2"

	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

// Size is the encoded width of an Amount in bytes.
const Size = 16

// Amount is an unsigned 128-bit balance. The zero value is zero.
type Amount struct {
	hi, lo uint64
}

// Zero is the zero amount.
var Zero = Amount{}

// Max is the largest representable amount.
var Max = Amount{hi: ^uint64(0), lo: ^uint64(0)}

// New returns an amount holding v.
func New(v uint64) Amount {
	return Amount{lo: v}
}

// FromBig converts b, failing if it is negative or wider than 128 bits.
func FromBig(b *big.Int) (Amount, error) {
	if b.Sign() < 0 || b.BitLen() > 128 {
		return Amount{}, fmt.Errorf("amount %s out of range: %w", b, arcerrors.ErrOverflow)
	}
	var buf [Size]byte
	b.FillBytes(buf[:])
	return FromBytes(buf[:])
}

// Parse reads a base-10 amount.
func Parse(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, arcerrors.ErrInvalidInput)
	}
	return FromBig(b)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes decodes a 16-byte big-endian amount.
func FromBytes(b []byte) (Amount, error) {
	if len(b) != Size {
		return Amount{}, fmt.Errorf("amount must be %d bytes, got %d: %w", Size, len(b), arcerrors.ErrInvalidInput)
	}
	return Amount{
		hi: binary.BigEndian.Uint64(b[:8]),
		lo: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

// Bytes returns the 16-byte big-endian encoding.
func (a Amount) Bytes() []byte {
	out := make([]byte, Size)
	binary.BigEndian.PutUint64(out[:8], a.hi)
	binary.BigEndian.PutUint64(out[8:], a.lo)
	return out
}

// Big returns the amount as a big.Int.
func (a Amount) Big() *big.Int {
	return new(big.Int).SetBytes(a.Bytes())
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.hi == 0 && a.lo == 0
}

// Cmp returns -1, 0 or +1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.hi < b.hi:
		return -1
	case a.hi > b.hi:
		return 1
	case a.lo < b.lo:
		return -1
	case a.lo > b.lo:
		return 1
	}
	return 0
}

// Add returns a+b, or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, carry := bits.Add64(a.hi, b.hi, carry)
	if carry != 0 {
		return Amount{}, arcerrors.ErrOverflow
	}
	return Amount{hi: hi, lo: lo}, nil
}

// Sub returns a-b, or ErrInsufficientBalance when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	lo, borrow := bits.Sub64(a.lo, b.lo, 0)
	hi, borrow := bits.Sub64(a.hi, b.hi, borrow)
	if borrow != 0 {
		return Amount{}, arcerrors.ErrInsufficientBalance
	}
	return Amount{hi: hi, lo: lo}, nil
}

// String returns the base-10 representation.
func (a Amount) String() string {
	if a.hi == 0 {
		return fmt.Sprintf("%d", a.lo)
	}
	return a.Big().String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalCBOR encodes the amount as a 16-byte string.
func (a Amount) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.Bytes())
}

// UnmarshalCBOR decodes a 16-byte string.
func (a *Amount) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := FromBytes(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
