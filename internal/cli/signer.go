package cli

import (
	"context"

	"github.com/spf13/viper"

	"github.com/gezibash/arc-ledger/internal/config"
	"github.com/gezibash/arc-ledger/internal/keyring"
)

// LoadKey loads the signing key a command runs as.
// Resolution order: key_path, then key_name, then defaultKeyName. Named keys
// are loaded (or generated) from the keyring under data_dir.
func LoadKey(ctx context.Context, v *viper.Viper, defaultKeyName string) (*keyring.Key, error) {
	if path := v.GetString("key_path"); path != "" {
		return keyring.LoadFile(path)
	}

	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	keyName := v.GetString("key_name")
	if keyName == "" {
		keyName = defaultKeyName
	}

	return keyring.New(dataDir).LoadOrGenerate(ctx, keyName)
}
