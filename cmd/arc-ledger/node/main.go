package node

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/cli"
	"github.com/gezibash/arc-ledger/pkg/api"
)

// StatusClient is the subset of *client.Client used by node commands.
type StatusClient interface {
	Ping(ctx context.Context) (time.Duration, error)
	Status(ctx context.Context) (*api.StatusResponse, error)
	Close() error
}

type nodeCmd struct {
	v    *viper.Viper
	dial func() (StatusClient, error)
}

func Entrypoint(v *viper.Viper) *cobra.Command {
	n := &nodeCmd{v: v, dial: func() (StatusClient, error) { return cli.Dial(v) }}

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run and manage a ledger node",
	}
	cmd.AddCommand(
		newStartCmd(v),
		newStatusCmd(n),
		newSnapshotCmd(v),
		newGenesisCmd(v),
	)
	return cmd
}

func (n *nodeCmd) output(cmd *cobra.Command) *cli.Output {
	return cli.NewOutput(cli.ParseFormat(n.v.GetString("output")), cmd.OutOrStdout())
}
