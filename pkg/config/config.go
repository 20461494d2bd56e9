package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration shared by the CLI and the
// embark namespace.
type Config struct {
	RPC       RPCConfig       `yaml:"rpc"`
	Contracts ContractsConfig `yaml:"contracts"`
	Storage   StorageConfig   `yaml:"storage"`
	Messages  MessagesConfig  `yaml:"messages"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RPCConfig points at the contract network node.
type RPCConfig struct {
	URL string `yaml:"url"` // HTTP or WebSocket endpoint; events need ws://
}

// ContractsConfig holds contract proxy defaults.
type ContractsConfig struct {
	DefaultGas   uint64             `yaml:"default_gas"`
	Confirmation ConfirmationConfig `yaml:"confirmation"`
}

// ConfirmationConfig tunes the receipt polling loop.
type ConfirmationConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxAttempts bounds receipt lookups; 0 polls until a receipt appears.
	MaxAttempts int `yaml:"max_attempts"`
}

// StorageConfig selects and addresses the content storage backend.
type StorageConfig struct {
	Provider string        `yaml:"provider"` // ipfs | swarm
	Protocol string        `yaml:"protocol"` // used by GetURL, e.g. "http://"
	Server   string        `yaml:"server"`
	Port     int           `yaml:"port"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MessagesConfig selects and addresses the messaging backend.
type MessagesConfig struct {
	Provider string        `yaml:"provider"` // whisper | orbit
	Server   string        `yaml:"server"`
	Port     int           `yaml:"port"`
	Whisper  WhisperConfig `yaml:"whisper"`
	Orbit    OrbitConfig   `yaml:"orbit"`
}

// WhisperConfig holds whisper-specific settings.
type WhisperConfig struct {
	FilterPollInterval time.Duration `yaml:"filter_poll_interval"`
}

// OrbitConfig holds the libp2p settings of the orbit channel transport.
type OrbitConfig struct {
	ListenAddresses   []string      `yaml:"listen_addresses"`
	BootstrapPeers    []string      `yaml:"bootstrap_peers"`
	Namespace         string        `yaml:"namespace"`
	IdentityFile      string        `yaml:"identity_file"` // empty: fresh key per run
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	OutputFile string `yaml:"output_file"` // Empty for stdout
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		RPC: RPCConfig{
			URL: "http://localhost:8545",
		},
		Contracts: ContractsConfig{
			DefaultGas: 800000,
			Confirmation: ConfirmationConfig{
				PollInterval: time.Second,
				MaxAttempts:  0,
			},
		},
		Storage: StorageConfig{
			Provider: "ipfs",
			Protocol: "http://",
			Server:   "localhost",
			Port:     5001,
			Timeout:  60 * time.Second,
		},
		Messages: MessagesConfig{
			Provider: "whisper",
			Server:   "localhost",
			Port:     8545,
			Whisper: WhisperConfig{
				FilterPollInterval: time.Second,
			},
			Orbit: OrbitConfig{
				ListenAddresses:   []string{"/ip4/0.0.0.0/tcp/0"},
				Namespace:         "embark",
				DiscoveryInterval: 30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values; unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := DecodeStrict(f, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
