package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NodeConfig is the configuration of `arc-ledger start`.
type NodeConfig struct {
	BaseConfig `mapstructure:",squash"`

	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Storage  BackendConfig  `mapstructure:"storage"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`
	Events   EventsConfig   `mapstructure:"events"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig selects a registered backend and its options.
type BackendConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

type GRPCConfig struct {
	Addr             string `mapstructure:"addr"`
	MaxRecvMsgSize   int    `mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize   int    `mapstructure:"max_send_msg_size"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

// GenesisConfig names the chain. When File is set the chain id and
// parameters come from it and ChainID is ignored.
type GenesisConfig struct {
	ChainID string `mapstructure:"chain_id"`
	File    string `mapstructure:"file"`
}

// EventsConfig tunes the in-process event bus and the optional Redis fan-out.
type EventsConfig struct {
	IntakeBufferSize    int               `mapstructure:"intake_buffer_size"`
	MaxConsecutiveDrops int               `mapstructure:"max_consecutive_drops"`
	SubscribeBuffer     int               `mapstructure:"subscribe_buffer"`
	Redis               bool              `mapstructure:"redis"`
	RedisConfig         map[string]string `mapstructure:"redis_config"`
}

// SnapshotConfig selects where snapshots are written and read.
type SnapshotConfig struct {
	Store  string            `mapstructure:"store"`
	Config map[string]string `mapstructure:"config"`
}

func setNodeDefaults(v *viper.Viper) {
	SetCommonDefaults(v)

	v.SetDefault("grpc.addr", NodeDefaults.ListenAddr)
	v.SetDefault("grpc.max_recv_msg_size", NodeDefaults.MaxRecvMsgSize)
	v.SetDefault("grpc.max_send_msg_size", NodeDefaults.MaxSendMsgSize)
	v.SetDefault("grpc.enable_reflection", NodeDefaults.EnableReflection)

	v.SetDefault("observability.metrics_addr", NodeDefaults.MetricsAddr)
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.service_name", "arc-ledger")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.trace_sample_ratio", 1.0)

	v.SetDefault("storage.backend", NodeDefaults.Backend)
	v.SetDefault("genesis.chain_id", NodeDefaults.ChainID)
	v.SetDefault("genesis.file", NodeDefaults.GenesisFile)

	v.SetDefault("events.intake_buffer_size", NodeDefaults.IntakeBufferSize)
	v.SetDefault("events.max_consecutive_drops", NodeDefaults.MaxConsecutiveDrops)
	v.SetDefault("events.subscribe_buffer", NodeDefaults.SubscribeBuffer)
	v.SetDefault("events.redis", false)

	v.SetDefault("snapshot.store", NodeDefaults.SnapshotStore)
	v.SetDefault("shutdown_timeout", NodeDefaults.ShutdownTimeout)
}

// BindNodeFlags binds the flags of the start command.
func BindNodeFlags(cmd *cobra.Command, v *viper.Viper) {
	BindServerFlags(cmd, v)

	f := cmd.Flags()
	f.String("backend", "", "state backend (memory, badger, sqlite)")
	f.String("chain-id", "", "chain id when no genesis file is given")
	f.String("genesis", "", "genesis file (TOML)")
	f.Bool("redis", false, "publish committed records to Redis")

	_ = v.BindPFlag("storage.backend", f.Lookup("backend"))
	_ = v.BindPFlag("genesis.chain_id", f.Lookup("chain-id"))
	_ = v.BindPFlag("genesis.file", f.Lookup("genesis"))
	_ = v.BindPFlag("events.redis", f.Lookup("redis"))
}

// LoadNode applies node defaults, loads flags, env and file, and fills in
// backend paths under the data directory.
func LoadNode(v *viper.Viper, configFile string) (NodeConfig, error) {
	setNodeDefaults(v)
	if err := Load(v, EnvPrefix, configFile, "$HOME/.arc-ledger", "/etc/arc-ledger"); err != nil {
		return NodeConfig{}, err
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return NodeConfig{}, err
	}
	cfg.applyDataDir()
	return cfg, nil
}

// applyDataDir points on-disk backends and the fs snapshot store at the
// data directory unless a path was configured.
func (c *NodeConfig) applyDataDir() {
	dir := c.ResolvedDataDir()
	if c.Storage.Config == nil {
		c.Storage.Config = map[string]string{}
	}
	if c.Storage.Backend != "memory" && c.Storage.Config["path"] == "" {
		name := "state"
		if c.Storage.Backend == "sqlite" {
			name = "state.db"
		}
		c.Storage.Config["path"] = filepath.Join(dir, name)
	}
	if c.Snapshot.Config == nil {
		c.Snapshot.Config = map[string]string{}
	}
	if c.Snapshot.Store == "fs" && c.Snapshot.Config["path"] == "" {
		c.Snapshot.Config["path"] = filepath.Join(dir, "snapshots")
	}
}
