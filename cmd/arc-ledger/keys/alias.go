package keys

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newAliasCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "alias <name> <alias|account>",
		Short: "Set an alias for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr := openKeyring(v)
			key, err := kr.Load(cmd.Context(), args[1])
			if err != nil {
				return fmt.Errorf("key %q not found: %w", args[1], err)
			}
			if err := kr.SetAlias(args[0], key.Account); err != nil {
				return fmt.Errorf("set alias: %w", err)
			}
			return output(cmd, v).Result("alias-set", fmt.Sprintf("Alias %q set", args[0])).
				With("Account", key.Account).
				Render()
		},
	}
}
