package keys

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/cli"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := openKeyring(v).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}

			out := output(cmd, v)
			if len(infos) == 0 && out.Format() == cli.FormatText {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No keys found. Create one with: arc-ledger keys generate")
				return err
			}

			t := out.Table("keys", "Account", "Aliases", "Default")
			for _, info := range infos {
				aliases := strings.Join(info.Aliases, ", ")
				if aliases == "" {
					aliases = "-"
				}
				def := ""
				if info.IsDefault {
					def = "*"
				}
				t.AddRow(info.Account, aliases, def)
			}
			return t.Render()
		},
	}
}
