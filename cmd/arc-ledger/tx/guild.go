package tx

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gezibash/arc-ledger/internal/guild"
)

func newCreateGuildCmd(t *txCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "create-guild <name>",
		Short: "Create a guild owned by the signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := t.client.CreateGuild(cmd.Context(), t.signer, []byte(args[0]))
			return t.report(cmd, receipt, err)
		},
	}
}

func newUpdateGuildCmd(t *txCmd) *cobra.Command {
	var (
		name    string
		members []string
	)

	cmd := &cobra.Command{
		Use:   "update-guild <guild-id>",
		Short: "Announce a guild update",
		Long: `Announce a guild update.

The update is recorded as an event; the stored guild is not changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("guild id %q: %w", args[0], err)
			}
			update := guild.Update{Name: []byte(name)}
			for _, m := range members {
				acct, err := t.account(cmd, m)
				if err != nil {
					return err
				}
				update.Members = append(update.Members, acct)
			}
			receipt, err := t.client.UpdateGuild(cmd.Context(), t.signer, id, update)
			return t.report(cmd, receipt, err)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new guild name")
	cmd.Flags().StringArrayVar(&members, "member", nil, "member account or key alias (repeatable)")
	return cmd
}
