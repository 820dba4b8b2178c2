package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/keyring"
	"github.com/gezibash/arc-ledger/pkg/client"
	"github.com/gezibash/arc-ledger/pkg/identity"
)

// Dial connects to the node named by node_addr. A configured chain_id pins
// the chain calls are signed for.
func Dial(v *viper.Viper) (*client.Client, error) {
	base := config.BaseConfig{NodeAddr: v.GetString("node_addr")}
	var opts []client.Option
	if chain := v.GetString("chain_id"); chain != "" {
		opts = append(opts, client.WithChainID(chain))
	}
	c, err := client.Dial(base.ResolvedNodeAddr(), opts...)
	if err != nil {
		return nil, fmt.Errorf("dial node %s: %w", base.ResolvedNodeAddr(), err)
	}
	return c, nil
}

// ResolveAccount parses s as an account id or encoded public key, falling
// back to a key alias in the local keyring.
func ResolveAccount(ctx context.Context, v *viper.Viper, s string) (identity.AccountID, error) {
	id, err := identity.ParseAccountID(s)
	if err == nil {
		return id, nil
	}
	if strings.Contains(s, ":") {
		return identity.AccountID{}, fmt.Errorf("account %q: %w", s, err)
	}

	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	key, kerr := keyring.New(dataDir).Load(ctx, s)
	if kerr != nil {
		if errors.Is(kerr, keyring.ErrNotFound) || errors.Is(kerr, keyring.ErrAliasNotFound) {
			return identity.AccountID{}, fmt.Errorf("account %q: not an account id, public key, or key alias", s)
		}
		return identity.AccountID{}, kerr
	}
	return key.Keypair.Account(), nil
}
