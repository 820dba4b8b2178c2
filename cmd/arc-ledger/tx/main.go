package tx

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/cli"
	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/ledger"
	"github.com/gezibash/arc-ledger/pkg/balance"
	"github.com/gezibash/arc-ledger/pkg/client"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// LedgerClient is the subset of *client.Client used by tx commands.
type LedgerClient interface {
	CreateGuild(ctx context.Context, signer identity.Signer, name []byte) (*ledger.Receipt, error)
	UpdateGuild(ctx context.Context, signer identity.Signer, id guild.ID, update guild.Update) (*ledger.Receipt, error)
	CreateClass(ctx context.Context, signer identity.Signer, metadata []byte, props assetclass.Properties) (*ledger.Receipt, error)
	RemoveDelegate(ctx context.Context, signer identity.Signer, owner, delegate identity.AccountID, kind delegation.Kind, delay uint64) (*ledger.Receipt, error)
	Transfer(ctx context.Context, signer identity.Signer, to identity.AccountID, amount balance.Amount) (*ledger.Receipt, error)
	Close() error
}

type txCmd struct {
	v      *viper.Viper
	client LedgerClient
	signer identity.Signer
}

func Entrypoint(v *viper.Viper) *cobra.Command {
	t := &txCmd{v: v}

	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and submit calls",
		Long: `Sign and submit calls to a ledger node.

Calls are signed with the key selected by --key or --key-path, falling back
to the "default" key, which is generated on first use.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if t.signer == nil {
				key, err := cli.LoadKey(cmd.Context(), v, config.Common.KeyName)
				if err != nil {
					return fmt.Errorf("load key: %w", err)
				}
				t.signer = key.Keypair
			}
			if t.client == nil {
				c, err := cli.Dial(v)
				if err != nil {
					return err
				}
				t.client = c
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if t.client != nil {
				return t.client.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().String("chain-id", "", "expected chain id (default: ask the node)")
	_ = v.BindPFlag("chain_id", cmd.PersistentFlags().Lookup("chain-id"))

	cmd.AddCommand(
		newCreateGuildCmd(t),
		newUpdateGuildCmd(t),
		newCreateClassCmd(t),
		newRemoveDelegateCmd(t),
		newTransferCmd(t),
	)
	return cmd
}

func (t *txCmd) output(cmd *cobra.Command) *cli.Output {
	return cli.NewOutput(cli.ParseFormat(t.v.GetString("output")), cmd.OutOrStdout())
}

// report renders the receipt of a submitted call. A call that ran and failed
// is rendered and then returned as an error.
func (t *txCmd) report(cmd *cobra.Command, receipt *ledger.Receipt, err error) error {
	var callErr *client.CallError
	if err != nil && !errors.As(err, &callErr) {
		return err
	}
	if rerr := t.output(cmd).Receipt(receipt).Render(); rerr != nil {
		return rerr
	}
	return err
}

func (t *txCmd) account(cmd *cobra.Command, s string) (identity.AccountID, error) {
	return cli.ResolveAccount(cmd.Context(), t.v, s)
}
