package query

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

func newAccountCmd(q *queryCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "account [account|alias]",
		Short: "Show balances and nonce (default: the active key)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := q.account(cmd, args)
			if err != nil {
				return err
			}
			resp, err := q.client.Account(cmd.Context(), who)
			if err != nil {
				return fmt.Errorf("account: %w", err)
			}
			return q.output(cmd).KV("account").
				Set("Account", who.String()).
				Set("Free", resp.Free.String()).
				Set("Reserved", resp.Reserved.String()).
				Set("Nonce", resp.Nonce).
				Render()
		},
	}
}

func newGuildCmd(q *queryCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "guild [owner]",
		Short: "Show the guild owned by an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := q.account(cmd, args)
			if err != nil {
				return err
			}
			g, err := q.client.Guild(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("guild: %w", err)
			}
			members := make([]string, len(g.Members))
			for i, m := range g.Members {
				members[i] = m.String()
			}
			return q.output(cmd).KV("guild").
				Set("ID", g.ID).
				Set("Owner", owner.String()).
				Set("Name", printable(g.Name)).
				Set("Members", members).
				Render()
		},
	}
}

func newClassCmd(q *queryCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "class <class-id>",
		Short: "Show an asset class and its custody account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("class id %q: %w", args[0], err)
			}
			resp, err := q.client.Class(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("class: %w", err)
			}
			info := resp.Info
			return q.output(cmd).KV("class").
				Set("ID", id).
				Set("Owner", info.Owner.String()).
				Set("Custody", resp.Custody.String()).
				Set("Deposit", info.Data.Deposit.String()).
				Set("Transferable", info.Data.Properties.Transferable).
				Set("Burnable", info.Data.Properties.Burnable).
				Set("Total Issuance", info.TotalIssuance).
				Set("Metadata", printable(info.Metadata)).
				Render()
		},
	}
}

func newClassesCmd(q *queryCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "classes [owner]",
		Short: "List classes owned by an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := q.account(cmd, args)
			if err != nil {
				return err
			}
			ids, err := q.client.ClassesOwnedBy(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("classes: %w", err)
			}
			t := q.output(cmd).Table("classes", "Class ID")
			for _, id := range ids {
				t.AddRow(strconv.FormatUint(id, 10))
			}
			return t.Render()
		},
	}
}

func newDelegatesCmd(q *queryCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "delegates [owner]",
		Short: "List delegations granted by an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := q.account(cmd, args)
			if err != nil {
				return err
			}
			list, err := q.client.Delegates(cmd.Context(), owner)
			if err != nil {
				return fmt.Errorf("delegates: %w", err)
			}
			t := q.output(cmd).Table("delegates", "Delegate", "Kind", "Delay")
			for _, d := range list {
				t.AddRow(d.Delegate.String(), string(d.Kind), strconv.FormatUint(d.Delay, 10))
			}
			return t.Render()
		},
	}
}

// printable returns b as text when it is valid UTF-8, else as 0x-prefixed hex.
func printable(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return "0x" + hex.EncodeToString(b)
}
