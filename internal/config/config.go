// Package config holds the daemon configuration: a YAML file in the data
// directory, overridden by KLINGSOL_* environment variables and then CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/Klingon-tech/klingsol/internal/chain"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// DefaultDataDir is the data directory used when none is given.
const DefaultDataDir = "~/.klingsol"

// Config holds all configuration for the wallet daemon.
type Config struct {
	// Network is the Solana cluster (mainnet, devnet, testnet, localnet).
	Network chain.Network `yaml:"network" env:"KLINGSOL_NETWORK"`

	RPC      RPCConfig      `yaml:"rpc"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	External ExternalConfig `yaml:"external"`
	Price    PriceConfig    `yaml:"price"`
	Swap     SwapConfig     `yaml:"swap"`
	Sync     SyncConfig     `yaml:"sync"`
	Token    TokenConfig    `yaml:"token"`
}

// RPCConfig holds Solana JSON-RPC endpoint settings.
type RPCConfig struct {
	// URL overrides the cluster's public endpoint when set.
	URL string `yaml:"url,omitempty" env:"KLINGSOL_RPC_URL"`

	// Commitment is processed, confirmed or finalized.
	Commitment string `yaml:"commitment" env:"KLINGSOL_RPC_COMMITMENT"`

	// Timeout bounds a single RPC request.
	Timeout time.Duration `yaml:"timeout" env:"KLINGSOL_RPC_TIMEOUT"`

	// ConfirmTimeout bounds how long a submission waits for confirmation.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout" env:"KLINGSOL_CONFIRM_TIMEOUT"`
}

// APIConfig holds the local JSON-RPC API settings.
type APIConfig struct {
	Listen string `yaml:"listen" env:"KLINGSOL_API_LISTEN"`

	// AllowedOrigins are browser origins allowed to call the API besides
	// loopback ones, e.g. "https://wallet.example.com".
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" env:"KLINGSOL_API_ALLOWED_ORIGINS" env-separator:","`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for the keystore, database and config.
	DataDir string `yaml:"data_dir" env:"KLINGSOL_DATA_DIR"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" env:"KLINGSOL_LOG_LEVEL"`
}

// ExternalConfig describes the user's own wallet outside this daemon.
// Withdrawals go to Address. Deposits come from it, signed with KeypairFile
// when configured, or returned unsigned for an external signer otherwise.
type ExternalConfig struct {
	Address     string `yaml:"address,omitempty" env:"KLINGSOL_EXTERNAL_ADDRESS"`
	KeypairFile string `yaml:"keypair_file,omitempty" env:"KLINGSOL_EXTERNAL_KEYPAIR"`
}

// PriceConfig holds the SOL/USD price feed settings.
type PriceConfig struct {
	Enabled  bool          `yaml:"enabled" env:"KLINGSOL_PRICE_ENABLED"`
	URL      string        `yaml:"url" env:"KLINGSOL_PRICE_URL"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"KLINGSOL_PRICE_TTL"`
}

// SwapConfig holds the Jupiter aggregator settings.
type SwapConfig struct {
	QuoteURL    string `yaml:"quote_url" env:"KLINGSOL_SWAP_QUOTE_URL"`
	SwapURL     string `yaml:"swap_url" env:"KLINGSOL_SWAP_URL"`
	SlippageBps uint16 `yaml:"slippage_bps" env:"KLINGSOL_SWAP_SLIPPAGE_BPS"`
}

// SyncConfig holds background worker settings.
type SyncConfig struct {
	// BalanceSchedule is a cron expression for refreshing all account balances.
	BalanceSchedule string `yaml:"balance_schedule" env:"KLINGSOL_BALANCE_SCHEDULE"`

	// ConfirmInterval is how often pending transactions are polled.
	ConfirmInterval time.Duration `yaml:"confirm_interval" env:"KLINGSOL_CONFIRM_INTERVAL"`

	// PendingExpiry marks a pending transaction failed after this long.
	PendingExpiry time.Duration `yaml:"pending_expiry"`
}

// TokenConfig holds defaults for newly minted tokens.
type TokenConfig struct {
	Name        string `yaml:"name"`
	Symbol      string `yaml:"symbol"`
	URI         string `yaml:"uri"`
	Description string `yaml:"description"`
	Decimals    uint8  `yaml:"decimals"`
	// Amount is the initial supply in whole tokens.
	Amount uint64 `yaml:"amount"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: chain.DefaultNetwork,
		RPC: RPCConfig{
			Commitment:     "confirmed",
			Timeout:        30 * time.Second,
			ConfirmTimeout: 90 * time.Second,
		},
		API: APIConfig{
			Listen: "127.0.0.1:8645",
		},
		Storage: StorageConfig{
			DataDir: DefaultDataDir,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Price: PriceConfig{
			Enabled:  true,
			URL:      "https://price.jup.ag/v6/price",
			CacheTTL: time.Minute,
		},
		Swap: SwapConfig{
			QuoteURL:    "https://quote-api.jup.ag/v6/quote",
			SwapURL:     "https://quote-api.jup.ag/v6/swap",
			SlippageBps: 50,
		},
		Sync: SyncConfig{
			BalanceSchedule: "@every 1m",
			ConfirmInterval: 5 * time.Second,
			PendingExpiry:   10 * time.Minute,
		},
		Token: TokenConfig{
			Name:        "OPOS",
			Symbol:      "OPOS",
			URI:         "https://raw.githubusercontent.com/solana-developers/opos-asset/main/assets/DeveloperPortal/metadata.json",
			Description: "Only Possible On Solana",
			Decimals:    9,
			Amount:      100,
		},
	}
}

// Params returns the cluster parameters for the configured network.
func (c *Config) Params() (*chain.Params, error) {
	params, ok := chain.Get(c.Network)
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", c.Network)
	}
	return params, nil
}

// RPCURL returns the configured endpoint, falling back to the cluster default.
func (c *Config) RPCURL() string {
	if c.RPC.URL != "" {
		return c.RPC.URL
	}
	if params, err := c.Params(); err == nil {
		return params.RPCURL
	}
	return ""
}

// Validate checks the configuration for values that would fail later.
func (c *Config) Validate() error {
	network, err := chain.ParseNetwork(string(c.Network))
	if err != nil {
		return err
	}
	c.Network = network

	switch c.RPC.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid commitment: %q", c.RPC.Commitment)
	}
	if c.API.Listen == "" {
		return fmt.Errorf("api listen address is required")
	}
	if c.Swap.SlippageBps > 10000 {
		return fmt.Errorf("slippage_bps %d exceeds 10000", c.Swap.SlippageBps)
	}
	if c.Token.Decimals > 9 {
		return fmt.Errorf("token decimals %d exceeds 9", c.Token.Decimals)
	}
	return nil
}

// LoadConfig loads configuration from <dataDir>/config.yaml.
// If the file doesn't exist, it creates one with default values.
// Environment variables are applied on top in both cases.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := ConfigPath(dataDir)

	cfg := DefaultConfig()
	cfg.Storage.DataDir = dataDir

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# klingsol wallet daemon configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(ExpandPath(dataDir), ConfigFileName)
}

// ExpandPath expands ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
