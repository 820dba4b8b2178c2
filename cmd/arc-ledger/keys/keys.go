package keys

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/cli"
	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/keyring"
)

func Entrypoint(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage signing keys",
		Long:  "Manage Ed25519 signing keys with alias support.\nKeys are stored in <data-dir>/keys/ by account, with a keyring.json alias map.",
	}

	cmd.AddCommand(
		newGenerateCmd(v),
		newImportCmd(v),
		newListCmd(v),
		newShowCmd(v),
		newAliasCmd(v),
		newDefaultCmd(v),
		newDeleteCmd(v),
	)

	return cmd
}

func dataDir(v *viper.Viper) string {
	if d := v.GetString("data_dir"); d != "" {
		return d
	}
	return config.DefaultDataDir()
}

func openKeyring(v *viper.Viper) *keyring.Keyring {
	return keyring.New(dataDir(v))
}

func output(cmd *cobra.Command, v *viper.Viper) *cli.Output {
	return cli.NewOutput(cli.ParseFormat(v.GetString("output")), cmd.OutOrStdout())
}
