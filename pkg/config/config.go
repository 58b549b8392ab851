// Package config loads git-remote-walrus's configuration from environment
// variables, a YAML config file, and built-in defaults, in that order of
// precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultDefaultEpochs              = uint32(5)
	defaultExpirationWarningThreshold = uint64(10)
)

// Config is the resolved configuration for one invocation.
type Config struct {
	WalletPath                 string `yaml:"wallet_path"`
	BlobConfigPath              string `yaml:"blob_config_path"`
	CacheDir                    string `yaml:"cache_dir"`
	DefaultEpochs               uint32 `yaml:"default_epochs"`
	ExpirationWarningThreshold uint64 `yaml:"expiration_warning_threshold"`
}

// expandTilde expands a leading "~" or "~/" to the user's home directory.
func expandTilde(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// ConfigFilePath returns the default config file location:
// $HOME/.config/git-remote-walrus/config.yaml.
func ConfigFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory for config file: %w", err)
	}
	return filepath.Join(home, ".config", "git-remote-walrus", "config.yaml"), nil
}

// Load resolves configuration from the config file (if present — missing
// is not an error, unlike the upstream Rust implementation this is ported
// from, per the spec's documented fallback-to-defaults behavior) and then
// applies environment variable overrides.
func Load() (Config, error) {
	cfg := Config{
		DefaultEpochs:               defaultDefaultEpochs,
		ExpirationWarningThreshold: defaultExpirationWarningThreshold,
	}

	path, err := ConfigFilePath()
	if err != nil {
		return Config{}, err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}

	if v, ok := os.LookupEnv("WALLET_PATH"); ok {
		cfg.WalletPath = expandTilde(v)
	}
	if v, ok := os.LookupEnv("BLOB_CONFIG"); ok {
		cfg.BlobConfigPath = expandTilde(v)
	}
	if v, ok := os.LookupEnv("CACHE_DIR"); ok {
		cfg.CacheDir = expandTilde(v)
	}
	if v, ok := os.LookupEnv("BLOB_EPOCHS"); ok {
		epochs, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse BLOB_EPOCHS as uint32: %w", err)
		}
		cfg.DefaultEpochs = uint32(epochs)
	}
	if v, ok := os.LookupEnv("EXPIRATION_WARNING_THRESHOLD"); ok {
		threshold, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse EXPIRATION_WARNING_THRESHOLD as uint64: %w", err)
		}
		cfg.ExpirationWarningThreshold = threshold
	}

	return cfg, nil
}

// LoadFromFile loads and tilde-expands a config file's contents. Unknown
// keys are rejected.
func LoadFromFile(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Config{
		DefaultEpochs:               defaultDefaultEpochs,
		ExpirationWarningThreshold: defaultExpirationWarningThreshold,
	}

	dec := yaml.NewDecoder(strings.NewReader(string(content)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.WalletPath = expandTilde(cfg.WalletPath)
	cfg.CacheDir = expandTilde(cfg.CacheDir)
	if cfg.BlobConfigPath != "" {
		cfg.BlobConfigPath = expandTilde(cfg.BlobConfigPath)
	}

	return cfg, nil
}

// Save serializes cfg to path, creating parent directories as needed.
func Save(cfg Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// EnsureCacheDir creates cfg.CacheDir if it does not already exist and
// returns it.
func (c Config) EnsureCacheDir() (string, error) {
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", c.CacheDir, err)
	}
	return c.CacheDir, nil
}
