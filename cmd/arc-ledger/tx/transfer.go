package tx

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gezibash/arc-ledger/pkg/balance"
)

func newTransferCmd(t *txCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer free balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := t.account(cmd, args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			receipt, err := t.client.Transfer(cmd.Context(), t.signer, to, amount)
			return t.report(cmd, receipt, err)
		},
	}
}

func parseAmount(s string) (balance.Amount, error) {
	amount, err := balance.Parse(s)
	if err != nil {
		return balance.Amount{}, fmt.Errorf("amount: %w", err)
	}
	if amount.IsZero() {
		return balance.Amount{}, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
