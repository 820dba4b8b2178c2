package node

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(n *nodeCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := n.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx := cmd.Context()
			latency, err := c.Ping(ctx)
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			st, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			return n.output(cmd).KV("node-status").
				Set("Chain ID", st.ChainID).
				Set("Module ID", st.ModuleID).
				Set("Class Deposit", st.ClassDeposit.String()).
				Set("Head", st.Head).
				Set("Next Guild ID", st.NextGuildID).
				Set("Next Class ID", st.NextClassID).
				Set("Total Issuance", st.TotalIssuance.String()).
				Set("Backend", st.Backend).
				Set("Keys", st.Keys).
				Set("Size Bytes", st.SizeBytes).
				Set("Subscribers", st.Subscribers).
				Set("Latency", latency.String()).
				Render()
		},
	}
}
