// Package currency keeps free and reserved balances per account.
package currency

import (
	"fmt"

	"github.com/gezibash/arc-ledger/internal/event"
	"github.com/gezibash/arc-ledger/internal/state"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// Account holds the balances of one account. Reserved funds are owned by the
// account but cannot be spent.
type Account struct {
	Free     balance.Amount `cbor:"1,keyasint"`
	Reserved balance.Amount `cbor:"2,keyasint"`
}

// Total returns free plus reserved.
func (a Account) Total() (balance.Amount, error) {
	return a.Free.Add(a.Reserved)
}

// IsEmpty reports whether the account holds nothing.
func (a Account) IsEmpty() bool {
	return a.Free.IsZero() && a.Reserved.IsZero()
}

// Currency is the balance ledger. Accounts that hold nothing are not stored.
type Currency struct {
	accounts state.Map[identity.AccountID, Account]
	issuance state.Value[balance.Amount]
}

// New returns a currency over the "currency/" keyspace.
func New() *Currency {
	return &Currency{
		accounts: state.NewMap[identity.AccountID, Account]("currency/accounts/", state.AccountKey{}),
		issuance: state.NewValue("currency/issuance", balance.Zero),
	}
}

// Account returns the balances of who. Unknown accounts are empty.
func (c *Currency) Account(tx *state.Tx, who identity.AccountID) (Account, error) {
	acct, _, err := c.accounts.Get(tx, who)
	return acct, err
}

// Exists reports whether who holds any balance.
func (c *Currency) Exists(tx *state.Tx, who identity.AccountID) (bool, error) {
	return c.accounts.Contains(tx, who)
}

// FreeBalance returns the spendable balance of who.
func (c *Currency) FreeBalance(tx *state.Tx, who identity.AccountID) (balance.Amount, error) {
	acct, err := c.Account(tx, who)
	return acct.Free, err
}

// ReservedBalance returns the locked balance of who.
func (c *Currency) ReservedBalance(tx *state.Tx, who identity.AccountID) (balance.Amount, error) {
	acct, err := c.Account(tx, who)
	return acct.Reserved, err
}

// TotalIssuance returns the sum of every deposit ever made.
func (c *Currency) TotalIssuance(tx *state.Tx) (balance.Amount, error) {
	return c.issuance.Get(tx)
}

// Transfer moves amount of free balance from one account to another. It fails
// with ErrInsufficientBalance when from cannot cover amount.
func (c *Currency) Transfer(tx *state.Tx, from, to identity.AccountID, amount balance.Amount) error {
	src, err := c.Account(tx, from)
	if err != nil {
		return err
	}
	srcFree, err := src.Free.Sub(amount)
	if err != nil {
		return fmt.Errorf("transfer %s from %s: %w", amount, from.Short(), err)
	}
	if from == to || amount.IsZero() {
		return nil
	}

	dst, err := c.Account(tx, to)
	if err != nil {
		return err
	}
	dstFree, err := dst.Free.Add(amount)
	if err != nil {
		return fmt.Errorf("transfer %s to %s: %w", amount, to.Short(), err)
	}

	src.Free = srcFree
	dst.Free = dstFree
	if err := c.store(tx, from, src); err != nil {
		return err
	}
	if err := c.store(tx, to, dst); err != nil {
		return err
	}
	tx.Emit(event.Transferred(from, to, amount))
	return nil
}

// Reserve moves amount from free to reserved. It fails with
// ErrInsufficientBalance when the free balance cannot cover amount.
func (c *Currency) Reserve(tx *state.Tx, who identity.AccountID, amount balance.Amount) error {
	acct, err := c.Account(tx, who)
	if err != nil {
		return err
	}
	free, err := acct.Free.Sub(amount)
	if err != nil {
		return fmt.Errorf("reserve %s on %s: %w", amount, who.Short(), err)
	}
	reserved, err := acct.Reserved.Add(amount)
	if err != nil {
		return fmt.Errorf("reserve %s on %s: %w", amount, who.Short(), err)
	}
	if amount.IsZero() {
		return nil
	}

	acct.Free, acct.Reserved = free, reserved
	if err := c.store(tx, who, acct); err != nil {
		return err
	}
	tx.Emit(event.Reserved(who, amount))
	return nil
}

// Unreserve moves amount from reserved back to free. It fails with
// ErrInsufficientBalance when less than amount is reserved.
func (c *Currency) Unreserve(tx *state.Tx, who identity.AccountID, amount balance.Amount) error {
	acct, err := c.Account(tx, who)
	if err != nil {
		return err
	}
	reserved, err := acct.Reserved.Sub(amount)
	if err != nil {
		return fmt.Errorf("unreserve %s on %s: %w", amount, who.Short(), err)
	}
	free, err := acct.Free.Add(amount)
	if err != nil {
		return fmt.Errorf("unreserve %s on %s: %w", amount, who.Short(), err)
	}
	if amount.IsZero() {
		return nil
	}

	acct.Free, acct.Reserved = free, reserved
	if err := c.store(tx, who, acct); err != nil {
		return err
	}
	tx.Emit(event.Unreserved(who, amount))
	return nil
}

// Deposit issues amount into the free balance of who.
func (c *Currency) Deposit(tx *state.Tx, who identity.AccountID, amount balance.Amount) error {
	if amount.IsZero() {
		return nil
	}
	total, err := c.issuance.Get(tx)
	if err != nil {
		return err
	}
	total, err = total.Add(amount)
	if err != nil {
		return fmt.Errorf("issue %s: %w", amount, err)
	}

	acct, err := c.Account(tx, who)
	if err != nil {
		return err
	}
	// Free never exceeds issuance.
	if acct.Free, err = acct.Free.Add(amount); err != nil {
		return fmt.Errorf("deposit %s to %s: %w", amount, who.Short(), err)
	}

	if err := c.issuance.Put(tx, total); err != nil {
		return err
	}
	if err := c.store(tx, who, acct); err != nil {
		return err
	}
	tx.Emit(event.Deposited(who, amount))
	return nil
}

// Accounts calls fn for every account holding a balance.
func (c *Currency) Accounts(tx *state.Tx, fn func(identity.AccountID, Account) error) error {
	return c.accounts.Iterate(tx, fn)
}

func (c *Currency) store(tx *state.Tx, who identity.AccountID, acct Account) error {
	if acct.IsEmpty() {
		return c.accounts.Remove(tx, who)
	}
	return c.accounts.Insert(tx, who, acct)
}
