package keys

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <alias|account>",
		Short: "Show key details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := openKeyring(v).Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("key %q not found: %w", args[0], err)
			}

			kv := output(cmd, v).KV("key-details").
				Set("Account", key.Account).
				Set("Public Key", key.Metadata.PublicKey)
			if !key.Metadata.CreatedAt.IsZero() {
				kv.Set("Created At", key.Metadata.CreatedAt.Format(time.RFC3339))
			}
			return kv.Set("Key File", filepath.Join(dataDir(v), "keys", key.Account+".key")).Render()
		},
	}
}
