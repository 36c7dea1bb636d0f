package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config represents the coordinator configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Ethereum   EVMChainConfig   `mapstructure:"ethereum"`
	Solana     SolanaConfig     `mapstructure:"solana"`
	Tron       TronConfig       `mapstructure:"tron"`
	Relayer    RelayerConfig    `mapstructure:"relayer"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	// EVMNetworks holds additional EVM-compatible networks resolved from the
	// environment once at load time (see loadEVMNetworks).
	EVMNetworks []EVMChainConfig `mapstructure:"-"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// EVMChainConfig describes one EVM-compatible network. The signing key is not
// stored here; PrivateKeyEnv names the environment variable holding it.
type EVMChainConfig struct {
	Name           string `mapstructure:"name" ignored:"true"`
	RPCURL         string `mapstructure:"rpc_url" envconfig:"RPC_URL"`
	ChainID        int64  `mapstructure:"chain_id" envconfig:"CHAIN_ID"`
	BridgeContract string `mapstructure:"bridge_contract" envconfig:"BRIDGE_CONTRACT"`
	TokenContract  string `mapstructure:"token_contract" envconfig:"TOKEN_CONTRACT"`
	TokenSymbol    string `mapstructure:"token_symbol" envconfig:"TOKEN_SYMBOL"`
	PrivateKeyEnv  string `mapstructure:"private_key_env" envconfig:"PRIVATE_KEY_ENV"`
	Confirmations  uint64 `mapstructure:"confirmations" envconfig:"CONFIRMATIONS" default:"12"`
	GasLimit       uint64 `mapstructure:"gas_limit" envconfig:"GAS_LIMIT" default:"300000"`
}

// Enabled reports whether the network carries enough configuration to build
// an adapter. A disabled chain is not an error; it surfaces later as
// "unsupported chain" at request time.
func (c EVMChainConfig) Enabled() bool {
	return c.Name != "" && c.RPCURL != "" && c.BridgeContract != ""
}

// SolanaConfig contains Solana chain settings
type SolanaConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	BridgeProgram string `mapstructure:"bridge_program"`
	PrivateKeyEnv string `mapstructure:"private_key_env"`
	Confirmations uint64 `mapstructure:"confirmations" default:"32"`
}

// Enabled reports whether the Solana adapter can be constructed.
func (c SolanaConfig) Enabled() bool {
	return c.RPCURL != "" && c.BridgeProgram != ""
}

// TronConfig contains Tron chain settings
type TronConfig struct {
	APIURL         string `mapstructure:"api_url"`
	BridgeContract string `mapstructure:"bridge_contract"`
	PrivateKeyEnv  string `mapstructure:"private_key_env"`
	Confirmations  uint64 `mapstructure:"confirmations" default:"19"`
}

// Enabled reports whether the Tron adapter can be constructed.
func (c TronConfig) Enabled() bool {
	return c.APIURL != "" && c.BridgeContract != ""
}

// RelayerConfig contains reconciliation settings
type RelayerConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Ethereum.Name == "" {
		config.Ethereum.Name = "ethereum"
	}
	if err := defaults.Set(&config.Ethereum); err != nil {
		return nil, fmt.Errorf("failed to apply ethereum defaults: %w", err)
	}
	if err := defaults.Set(&config.Solana); err != nil {
		return nil, fmt.Errorf("failed to apply solana defaults: %w", err)
	}
	if err := defaults.Set(&config.Tron); err != nil {
		return nil, fmt.Errorf("failed to apply tron defaults: %w", err)
	}

	networks, err := LoadEVMNetworks()
	if err != nil {
		return nil, err
	}
	config.EVMNetworks = networks

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadEVMNetworks resolves additional EVM-compatible networks from the
// environment. EVM_NETWORKS enumerates network names; each network's
// parameters are read from its prefixed variables (<NAME>_RPC_URL,
// <NAME>_BRIDGE_CONTRACT, <NAME>_TOKEN_CONTRACT, <NAME>_TOKEN_SYMBOL,
// <NAME>_PRIVATE_KEY_ENV, <NAME>_CHAIN_ID, <NAME>_CONFIRMATIONS,
// <NAME>_GAS_LIMIT). Networks with incomplete parameters are skipped rather
// than treated as load errors.
func LoadEVMNetworks() ([]EVMChainConfig, error) {
	raw := os.Getenv("EVM_NETWORKS")
	if raw == "" {
		return nil, nil
	}

	var networks []EVMChainConfig
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		network := EVMChainConfig{Name: strings.ToLower(name)}
		if err := defaults.Set(&network); err != nil {
			return nil, fmt.Errorf("failed to apply defaults for network %s: %w", name, err)
		}
		if err := envconfig.Process(strings.ToUpper(name), &network); err != nil {
			return nil, fmt.Errorf("failed to read %s network environment: %w", name, err)
		}

		if !network.Enabled() {
			continue
		}
		networks = append(networks, network)
	}
	return networks, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "tokenbridge")

	// Relayer defaults
	viper.SetDefault("relayer.sweep_interval", "30s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Relayer.SweepInterval <= 0 {
		return fmt.Errorf("relayer.sweep_interval must be positive")
	}
	return nil
}
