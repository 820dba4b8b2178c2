package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/cli"
	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/keyring"
)

func newWhoamiCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cli.NewOutput(cli.ParseFormat(v.GetString("output")), cmd.OutOrStdout())

			if path := v.GetString("key_path"); path != "" {
				key, err := keyring.LoadFile(path)
				if err != nil {
					return err
				}
				return out.KV("whoami").
					Set("Account", key.Account).
					Set("Public Key", key.Metadata.PublicKey).
					Set("Key File", path).
					Render()
			}

			dataDir := v.GetString("data_dir")
			if dataDir == "" {
				dataDir = config.DefaultDataDir()
			}
			kr := keyring.New(dataDir)

			var key *keyring.Key
			var err error
			if name := v.GetString("key_name"); name != "" {
				key, err = kr.Load(ctx, name)
			} else {
				key, err = kr.LoadDefault(ctx)
			}
			if err != nil {
				return fmt.Errorf("load key: %w", err)
			}

			kv := out.KV("whoami").
				Set("Account", key.Account).
				Set("Public Key", key.Metadata.PublicKey)

			infos, err := kr.List(ctx)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			for _, info := range infos {
				if info.Account != key.Account {
					continue
				}
				if len(info.Aliases) > 0 {
					kv.Set("Aliases", strings.Join(info.Aliases, ", "))
				}
				kv.Set("Default", info.IsDefault)
				break
			}
			return kv.Render()
		},
	}
}
