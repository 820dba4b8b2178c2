package keys

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDeleteCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <alias|account>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openKeyring(v).Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete key: %w", err)
			}
			return output(cmd, v).Result("key-deleted", fmt.Sprintf("Key %q deleted", args[0])).
				With("Key", args[0]).
				Render()
		},
	}
}
