package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/cmd/arc-ledger/keys"
	"github.com/gezibash/arc-ledger/cmd/arc-ledger/node"
	"github.com/gezibash/arc-ledger/cmd/arc-ledger/query"
	"github.com/gezibash/arc-ledger/cmd/arc-ledger/tx"
	"github.com/gezibash/arc-ledger/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "arc-ledger",
		Short: "Guild registry and escrowed asset-class ledger",
		Long: `arc-ledger runs and talks to a ledger node holding guilds, asset classes,
balances, and delegations.

Server commands:
  arc-ledger node start              Run a ledger node
  arc-ledger node snapshot export    Write a state snapshot

Client commands:
  arc-ledger tx create-class <meta>  Create an asset class, escrowing the deposit
  arc-ledger query account <who>     Show balances and nonce
  arc-ledger query watch             Stream committed events`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.BindCommonFlags(rootCmd, v)
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml)")
	_ = v.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(node.Entrypoint(v))
	rootCmd.AddCommand(keys.Entrypoint(v))
	rootCmd.AddCommand(tx.Entrypoint(v))
	rootCmd.AddCommand(query.Entrypoint(v))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newWhoamiCmd(v))

	return rootCmd.ExecuteContext(context.Background())
}
