package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const (
	defaultRPCURL          = "http://127.0.0.1:8545"
	defaultMonitorInterval = 5
	defaultSpeedUpPercent  = 10
	defaultBatchGrace      = 3
	defaultLogLevel        = "warn"
	defaultLogFormat       = "console"

	configFile  = "config.json"
	walletsFile = "wallets.json"
	queueFile   = "queue.json"
)

// Load reads config from dir (or creates defaults). dir defaults to ~/.w3tx.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3tx")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.configDir = dir
	cfg.fillZero()
	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE pairs from .env files into the process
// environment. Missing files are skipped and variables already set win.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	return saveJSON(filepath.Join(c.configDir, configFile), c)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// WalletsPath returns the path of wallets.json.
func (c *Config) WalletsPath() string {
	return filepath.Join(c.configDir, walletsFile)
}

// RPC returns the endpoint to use; W3TX_RPC_URL overrides the file.
func (c *Config) RPC() string {
	return envOr(EnvRPCURL, c.RPCURL)
}

// RPCEndpoints lists the primary endpoint followed by the fallbacks, without
// duplicates. W3TX_RPC_URL pins a single endpoint.
func (c *Config) RPCEndpoints() []string {
	if v := strings.TrimSpace(os.Getenv(EnvRPCURL)); v != "" {
		return []string{v}
	}
	seen := make(map[string]bool)
	var out []string
	for _, u := range append([]string{c.RPCURL}, c.RPCFallbacks...) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Wallet returns the wallet name to use; W3TX_WALLET overrides the file.
func (c *Config) Wallet() string {
	return envOr(EnvWallet, c.DefaultWallet)
}

// Level returns the log level; W3TX_LOG_LEVEL overrides the file.
func (c *Config) Level() string {
	return envOr(EnvLogLevel, c.LogLevel)
}

// Monitor returns the status polling interval.
func (c *Config) Monitor() time.Duration {
	return time.Duration(c.MonitorInterval) * time.Second
}

// Grace returns how long a finished batch stays visible.
func (c *Config) Grace() time.Duration {
	return time.Duration(c.BatchGrace) * time.Second
}

// AddToken registers a token alias.
func (c *Config) AddToken(alias, address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid token address %q", address)
	}
	key := strings.ToLower(alias)
	if _, ok := c.Tokens[key]; ok {
		return fmt.Errorf("token %s already exists", alias)
	}
	c.Tokens[key] = common.HexToAddress(address).Hex()
	return nil
}

// RemoveToken removes a token alias.
func (c *Config) RemoveToken(alias string) error {
	key := strings.ToLower(alias)
	if _, ok := c.Tokens[key]; !ok {
		return fmt.Errorf("token %s not found", alias)
	}
	delete(c.Tokens, key)
	return nil
}

// ResolveToken maps an alias or a literal address to a contract address.
func (c *Config) ResolveToken(aliasOrAddress string) (string, error) {
	if common.IsHexAddress(aliasOrAddress) {
		return common.HexToAddress(aliasOrAddress).Hex(), nil
	}
	if addr, ok := c.Tokens[strings.ToLower(aliasOrAddress)]; ok {
		return addr, nil
	}
	return "", fmt.Errorf("unknown token %q (add it with: w3tx token add <alias> <address>)", aliasOrAddress)
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		RPCURL:          defaultRPCURL,
		MonitorInterval: defaultMonitorInterval,
		SpeedUpPercent:  defaultSpeedUpPercent,
		BatchGrace:      defaultBatchGrace,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		Tokens:          make(map[string]string),
		configDir:       dir,
	}
}

// fillZero restores defaults for fields a hand-edited file left empty.
func (c *Config) fillZero() {
	d := defaults(c.configDir)
	if c.RPCURL == "" {
		c.RPCURL = d.RPCURL
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	if c.SpeedUpPercent < 0 {
		c.SpeedUpPercent = d.SpeedUpPercent
	}
	if c.BatchGrace < 0 {
		c.BatchGrace = d.BatchGrace
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Tokens == nil {
		c.Tokens = make(map[string]string)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func loadJSON[T any](path string) (*T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &zero, nil
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// saveJSON writes through a temp file so a crash never leaves a truncated
// file behind.
func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
