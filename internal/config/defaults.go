// Package config loads node and CLI configuration from flags, environment,
// and an optional TOML file.
package config

import (
	"os"
	"path/filepath"
)

// EnvPrefix prefixes every environment override, e.g. ARC_LEDGER_GRPC_ADDR.
const EnvPrefix = "ARC_LEDGER"

// Common contains default values shared by the node and the CLI.
var Common = struct {
	NodeAddr  string
	LogLevel  string
	LogFormat string
	DataDir   string
	KeyName   string
}{
	NodeAddr:  "localhost:50061",
	LogLevel:  "info",
	LogFormat: "text",
	DataDir:   DefaultDataDir(),
	KeyName:   "default",
}

// DefaultDataDir returns the default data directory (~/.arc-ledger).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arc-ledger"
	}
	return filepath.Join(home, ".arc-ledger")
}

// NodeDefaults contains default values for a running node.
var NodeDefaults = struct {
	ListenAddr          string
	MaxRecvMsgSize      int
	MaxSendMsgSize      int
	EnableReflection    bool
	MetricsAddr         string
	Backend             string
	ChainID             string
	GenesisFile         string
	IntakeBufferSize    int
	MaxConsecutiveDrops int
	SubscribeBuffer     int
	SnapshotStore       string
	ShutdownTimeout     string
}{
	ListenAddr:          ":50061",
	MaxRecvMsgSize:      4 * 1024 * 1024, // 4MB
	MaxSendMsgSize:      4 * 1024 * 1024, // 4MB
	EnableReflection:    false,
	MetricsAddr:         ":9090",
	Backend:             "badger",
	ChainID:             "arc-ledger-dev",
	GenesisFile:         "",
	IntakeBufferSize:    4096,
	MaxConsecutiveDrops: 1000,
	SubscribeBuffer:     100,
	SnapshotStore:       "fs",
	ShutdownTimeout:     "10s",
}
