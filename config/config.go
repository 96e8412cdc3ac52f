// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Deployment parameters: defined in the genesis file, immutable after
//     first start (owner, treasury, fee schedule, selector seed)
//   - Node settings: runtime configuration from imprintd.toml and flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	Network NetworkType `toml:"network"`
	DataDir string      `toml:"datadir"`

	// RPC server
	RPC RPCConfig `toml:"rpc"`

	// Wallet / keystore
	Wallet WalletConfig `toml:"wallet"`

	// Logging
	Log LogConfig `toml:"log"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors"` // Allowed CORS origins ("*" = all).
}

// WalletConfig holds keystore settings.
type WalletConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
	JSON  bool   `toml:"json"`
}

// ListenAddr returns the RPC host:port string.
func (r RPCConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", r.Addr, r.Port)
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.imprintd
//	macOS:   ~/Library/Application Support/Imprintd
//	Windows: %APPDATA%\Imprintd
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".imprintd"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Imprintd")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Imprintd")
		}
		return filepath.Join(home, "AppData", "Roaming", "Imprintd")
	default:
		return filepath.Join(home, ".imprintd")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StateDir returns the ledger database directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.NetworkDataDir(), "state")
}

// CurrencyDir returns the hosted settlement-asset database directory.
// Separate from StateDir: the asset lives outside engine transactions.
func (c *Config) CurrencyDir() string {
	return filepath.Join(c.NetworkDataDir(), "currency")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "imprintd.toml")
}

// GenesisFile returns the genesis file path.
func (c *Config) GenesisFile() string {
	return filepath.Join(c.NetworkDataDir(), "genesis.json")
}

// AddressHRP returns the bech32 address prefix for the configured network.
func (c *Config) AddressHRP() string {
	if c.Network == Testnet {
		return "timp"
	}
	return "imp"
}

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	return nil
}
