package keys

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDefaultCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "default <alias>",
		Short: "Set the default key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openKeyring(v).SetDefault(args[0]); err != nil {
				return fmt.Errorf("set default: %w", err)
			}
			return output(cmd, v).Result("default-set", fmt.Sprintf("Default key set to %q", args[0])).
				With("Alias", args[0]).
				Render()
		},
	}
}
