package node

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/cli"
	"github.com/gezibash/arc-ledger/internal/config"
	arcnode "github.com/gezibash/arc-ledger/internal/node"
	"github.com/gezibash/arc-ledger/internal/snapshot"
	"github.com/gezibash/arc-ledger/internal/statestore/physical"
)

func newSnapshotCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export, restore, and list state snapshots",
		Long: `Export, restore, and list state snapshots.

Snapshots read and write the node's state backend directly; stop the node
first when it uses an on-disk backend.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			_ = v.BindPFlag("storage.backend", f.Lookup("backend"))
			_ = v.BindPFlag("snapshot.store", f.Lookup("store"))
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.String("config", "", "config file path")
	f.String("backend", "", "state backend (memory, badger, sqlite)")
	f.String("store", "", "snapshot store (fs, s3)")

	cmd.AddCommand(
		newSnapshotExportCmd(v),
		newSnapshotRestoreCmd(v),
		newSnapshotListCmd(v),
	)
	return cmd
}

func loadSnapshotConfig(cmd *cobra.Command, v *viper.Viper) (config.NodeConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadNode(v, configFile)
	if err != nil {
		return config.NodeConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openSnapshotTargets(cmd *cobra.Command, v *viper.Viper) (physical.Backend, snapshot.Store, error) {
	cfg, err := loadSnapshotConfig(cmd, v)
	if err != nil {
		return nil, nil, err
	}
	store, err := arcnode.OpenSnapshotStore(cmd.Context(), &cfg.Snapshot)
	if err != nil {
		return nil, nil, err
	}
	backend, err := arcnode.OpenBackend(cmd.Context(), &cfg.Storage, nil)
	if err != nil {
		return nil, nil, err
	}
	return backend, store, nil
}

func renderManifest(out *cli.Output, resultType, msg, name string, m *snapshot.Manifest) error {
	return out.Result(resultType, msg).
		With("Name", name).
		With("Chain ID", m.ChainID).
		With("Keys", m.Keys).
		With("Digest", m.Digest).
		Render()
}

func newSnapshotExportCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of the state backend to the snapshot store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, store, err := openSnapshotTargets(cmd, v)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			name, m, err := arcnode.ExportSnapshot(cmd.Context(), backend, store)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			out := cli.NewOutput(cli.ParseFormat(v.GetString("output")), cmd.OutOrStdout())
			return renderManifest(out, "snapshot-exported", "Snapshot exported", name, m)
		},
	}
}

func newSnapshotRestoreCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <name>",
		Short: "Restore a snapshot into an empty state backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, store, err := openSnapshotTargets(cmd, v)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			m, err := arcnode.RestoreSnapshot(cmd.Context(), backend, store, args[0])
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			out := cli.NewOutput(cli.ParseFormat(v.GetString("output")), cmd.OutOrStdout())
			return renderManifest(out, "snapshot-restored", "Snapshot restored", args[0], m)
		},
	}
}

func newSnapshotListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSnapshotConfig(cmd, v)
			if err != nil {
				return err
			}
			store, err := arcnode.OpenSnapshotStore(cmd.Context(), &cfg.Snapshot)
			if err != nil {
				return err
			}
			names, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}

			out := cli.NewOutput(cli.ParseFormat(v.GetString("output")), cmd.OutOrStdout())
			t := out.Table("snapshots", "Name")
			for _, name := range names {
				t.AddRow(name)
			}
			return t.Render()
		},
	}
}
