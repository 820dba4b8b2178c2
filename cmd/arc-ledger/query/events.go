package query

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gezibash/arc-ledger/internal/cli"
	"github.com/gezibash/arc-ledger/pkg/client"
)

func newEventsCmd(q *queryCmd) *cobra.Command {
	var (
		from   uint64
		limit  int
		filter string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled events",
		Long: `List journaled events in sequence order.

--filter takes a CEL expression over the record attributes, for example:
  kind == "class.created"
  kind.startsWith("currency.") && amount > 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := q.client.Events(cmd.Context(), &client.EventsOptions{From: from, Limit: limit, Filter: filter})
			if err != nil {
				return fmt.Errorf("events: %w", err)
			}
			t := q.output(cmd).Records("events", resp.Records)
			if resp.More {
				t.WithPagination(strconv.FormatUint(resp.Next, 10), true)
			}
			return t.Render()
		},
	}

	cmd.Flags().Uint64Var(&from, "from", 0, "first sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records (default 100, max 1000)")
	cmd.Flags().StringVar(&filter, "filter", "", "CEL filter expression")
	return cmd
}

func newWatchCmd(q *queryCmd) *cobra.Command {
	var (
		filter string
		replay bool
		from   uint64
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream committed events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			records, errs, err := q.client.Subscribe(ctx, &client.SubscribeOptions{
				Filter: filter,
				Replay: replay || cmd.Flags().Changed("from"),
				From:   from,
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}

			out := q.output(cmd)
			for r := range records {
				if out.Format() == cli.FormatText {
					if _, err := fmt.Fprintf(out.Writer(), "%s\n", joinRow(cli.RecordRow(r))); err != nil {
						return err
					}
					continue
				}
				if err := out.Value("event", r); err != nil {
					return err
				}
			}

			err = <-errs
			if err == nil || ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "CEL filter expression")
	cmd.Flags().BoolVar(&replay, "replay", false, "send journaled events before live ones")
	cmd.Flags().Uint64Var(&from, "from", 0, "first sequence number to replay (implies --replay)")
	return cmd
}

func joinRow(cols []string) string {
	s := cols[0]
	for _, c := range cols[1:] {
		if c != "" {
			s += "  " + c
		}
	}
	return s
}
