package tx

import (
	"github.com/spf13/cobra"

	"github.com/gezibash/arc-ledger/internal/delegation"
)

func newRemoveDelegateCmd(t *txCmd) *cobra.Command {
	var (
		kind  string
		delay uint64
	)

	cmd := &cobra.Command{
		Use:   "remove-delegate <owner> <delegate>",
		Short: "Revoke a delegation",
		Long: `Revoke the grant from owner to delegate. The signer must be the owner or
the delegate.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := t.account(cmd, args[0])
			if err != nil {
				return err
			}
			delegate, err := t.account(cmd, args[1])
			if err != nil {
				return err
			}
			k, err := delegation.ParseKind(kind)
			if err != nil {
				return err
			}
			receipt, err := t.client.RemoveDelegate(cmd.Context(), t.signer, owner, delegate, k, delay)
			return t.report(cmd, receipt, err)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(delegation.KindAny), "delegation kind (any, non_transfer, governance)")
	cmd.Flags().Uint64Var(&delay, "delay", 0, "announcement delay of the grant")
	return cmd
}
