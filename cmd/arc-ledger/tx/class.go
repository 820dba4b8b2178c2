package tx

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gezibash/arc-ledger/internal/assetclass"
)

func newCreateClassCmd(t *txCmd) *cobra.Command {
	var (
		metadataHex  string
		transferable bool
		burnable     bool
	)

	cmd := &cobra.Command{
		Use:   "create-class [metadata]",
		Short: "Create an asset class, escrowing the class deposit",
		Long: `Create an asset class owned by the signer.

The signer's free balance is reserved and the class deposit is moved to the
class custody account. The signer becomes the custody account's delegate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var metadata []byte
			switch {
			case metadataHex != "" && len(args) > 0:
				return fmt.Errorf("give metadata as an argument or --metadata-hex, not both")
			case metadataHex != "":
				var err error
				if metadata, err = hex.DecodeString(metadataHex); err != nil {
					return fmt.Errorf("metadata hex: %w", err)
				}
			case len(args) > 0:
				metadata = []byte(args[0])
			}

			props := assetclass.Properties{Transferable: transferable, Burnable: burnable}
			receipt, err := t.client.CreateClass(cmd.Context(), t.signer, metadata, props)
			return t.report(cmd, receipt, err)
		},
	}

	cmd.Flags().StringVar(&metadataHex, "metadata-hex", "", "hex-encoded metadata")
	cmd.Flags().BoolVar(&transferable, "transferable", false, "instances may be transferred")
	cmd.Flags().BoolVar(&burnable, "burnable", false, "instances may be burned")
	return cmd
}
