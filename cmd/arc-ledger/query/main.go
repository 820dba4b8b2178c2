package query

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/assetclass"
	"github.com/gezibash/arc-ledger/internal/cli"
	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/delegation"
	"github.com/gezibash/arc-ledger/internal/guild"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/pkg/api"
	"github.com/gezibash/arc-ledger/pkg/client"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// QueryClient is the subset of *client.Client used by query commands.
type QueryClient interface {
	Account(ctx context.Context, who identity.AccountID) (*api.AccountResponse, error)
	Guild(ctx context.Context, owner identity.AccountID) (guild.Guild, error)
	Class(ctx context.Context, id assetclass.ClassID) (*api.ClassResponse, error)
	ClassesOwnedBy(ctx context.Context, owner identity.AccountID) ([]assetclass.ClassID, error)
	Delegates(ctx context.Context, owner identity.AccountID) ([]delegation.Delegation, error)
	Events(ctx context.Context, opts *client.EventsOptions) (*api.EventsResponse, error)
	Subscribe(ctx context.Context, opts *client.SubscribeOptions) (<-chan journal.Record, <-chan error, error)
	Close() error
}

type queryCmd struct {
	v      *viper.Viper
	client QueryClient
}

func Entrypoint(v *viper.Viper) *cobra.Command {
	return newQueryCmd(&queryCmd{v: v})
}

func newQueryCmd(q *queryCmd) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read ledger state",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if q.client != nil {
				return nil
			}
			c, err := cli.Dial(q.v)
			if err != nil {
				return err
			}
			q.client = c
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if q.client != nil {
				return q.client.Close()
			}
			return nil
		},
	}
	cmd.AddCommand(
		newAccountCmd(q),
		newGuildCmd(q),
		newClassCmd(q),
		newClassesCmd(q),
		newDelegatesCmd(q),
		newEventsCmd(q),
		newWatchCmd(q),
	)
	return cmd
}

func (q *queryCmd) output(cmd *cobra.Command) *cli.Output {
	return cli.NewOutput(cli.ParseFormat(q.v.GetString("output")), cmd.OutOrStdout())
}

func (q *queryCmd) account(cmd *cobra.Command, args []string) (identity.AccountID, error) {
	if len(args) > 0 {
		return cli.ResolveAccount(cmd.Context(), q.v, args[0])
	}
	key, err := cli.LoadKey(cmd.Context(), q.v, config.Common.KeyName)
	if err != nil {
		return identity.AccountID{}, err
	}
	return key.Keypair.Account(), nil
}
