package balance

import (
	"errors"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"

	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

func TestAddCarriesIntoHighWord(t *testing.T) {
	a := New(^uint64(0))
	got, err := a.Add(New(1))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := new(big.Int).Lsh(big.NewInt(1), 64)
	if got.Big().Cmp(want) != 0 {
		t.Fatalf("Add = %s, want %s", got, want)
	}
}

func TestAddOverflow(t *testing.T) {
	if _, err := Max.Add(New(1)); !errors.Is(err, arcerrors.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestSubInsufficient(t *testing.T) {
	if _, err := New(5).Sub(New(6)); !errors.Is(err, arcerrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	got, err := MustParse("18446744073709551616").Sub(New(1))
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if got != New(^uint64(0)) {
		t.Fatalf("Sub = %s", got)
	}
}

func TestCmp(t *testing.T) {
	tests := []struct {
		a, b Amount
		want int
	}{
		{New(1), New(2), -1},
		{New(2), New(2), 0},
		{MustParse("18446744073709551616"), New(^uint64(0)), 1},
		{Zero, Zero, 0},
	}
	for _, tt := range tests {
		if got := tt.a.Cmp(tt.b); got != tt.want {
			t.Errorf("Cmp(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("-1"); err == nil {
		t.Error("expected error for negative amount")
	}
	if _, err := Parse("abc"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
	if _, err := Parse("340282366920938463463374607431768211456"); !errors.Is(err, arcerrors.ErrOverflow) {
		t.Errorf("expected ErrOverflow for 2^128, got %v", err)
	}
	top, err := Parse("340282366920938463463374607431768211455")
	if err != nil || top != Max {
		t.Errorf("Parse max = %s, %v", top, err)
	}
}

func TestCBORRoundTrip(t *testing.T) {
	in := MustParse("123456789012345678901234567890")
	data, err := cbor.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Amount
	if err := cbor.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %s, want %s", out, in)
	}
}
