package config

import "os"

// BaseConfig contains configuration fields shared by the node and the CLI.
// Command configs embed this struct with mapstructure:",squash".
type BaseConfig struct {
	DataDir       string              `mapstructure:"data_dir"`
	NodeAddr      string              `mapstructure:"node_addr"`
	KeyName       string              `mapstructure:"key_name"`
	KeyPath       string              `mapstructure:"key_path"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel         string  `mapstructure:"log_level"`
	LogFormat        string  `mapstructure:"log_format"`
	MetricsAddr      string  `mapstructure:"metrics_addr"`
	OTLPEndpoint     string  `mapstructure:"otlp_endpoint"`
	OTLPProtocol     string  `mapstructure:"otlp_protocol"`
	ServiceName      string  `mapstructure:"service_name"`
	ServiceVersion   string  `mapstructure:"service_version"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
}

// ResolvedNodeAddr returns the node address, checking config > ARC_LEDGER_NODE env > default.
func (c BaseConfig) ResolvedNodeAddr() string {
	if c.NodeAddr != "" {
		return c.NodeAddr
	}
	if addr := os.Getenv(EnvPrefix + "_NODE"); addr != "" {
		return addr
	}
	return Common.NodeAddr
}

// ResolvedDataDir returns the data directory from config, or the default (~/.arc-ledger).
func (c BaseConfig) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}
