// Package config loads passkeep configuration: conservative defaults,
// overridden by an optional YAML file, overridden by PASSKEEP_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the configuration file name inside the passkeep
// directory.
const ConfigFileName = "config.yaml"

// VaultFileName is the default vault file name inside the passkeep
// directory.
const VaultFileName = "vault.pkv"

// KDF holds Argon2id cost overrides. Zero fields fall back to the
// crypto package defaults at vault creation.
type KDF struct {
	Memory  uint32 `yaml:"memory" env:"MEMORY"`   // KiB
	Time    uint32 `yaml:"time" env:"TIME"`       // iterations
	Threads uint8  `yaml:"threads" env:"THREADS"` // parallelism
}

// Config is the full passkeep configuration.
type Config struct {
	// VaultPath is the vault file location.
	VaultPath string `yaml:"vault_path" env:"VAULT"`

	// IdleTimeout is the inactivity interval before auto-lock.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`

	// KeepBackups is the number of rotating backups kept per commit.
	KeepBackups int `yaml:"keep_backups" env:"KEEP_BACKUPS"`

	// DiscardOnLock drops unsaved changes on lock instead of flushing.
	DiscardOnLock bool `yaml:"discard_on_lock" env:"DISCARD_ON_LOCK"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// KDF overrides the Argon2id cost parameters for new vaults.
	KDF KDF `yaml:"kdf" envPrefix:"KDF_"`
}

// Default returns the built-in configuration: vault under ~/.passkeep,
// 5 minute idle lock, 3 backups, info logging.
func Default() Config {
	return Config{
		VaultPath:   filepath.Join(baseDir(), VaultFileName),
		IdleTimeout: 5 * time.Minute,
		KeepBackups: 3,
		LogLevel:    "info",
	}
}

// Load builds the effective configuration. The YAML file is optional; a
// missing file simply means defaults plus environment. File values are
// validated the same way regardless of source.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = filepath.Join(baseDir(), ConfigFileName)
	}
	if err := loadFile(configPath, &cfg); err != nil {
		return Config{}, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PASSKEEP_"}); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile merges the YAML file at path into cfg. A missing file is not an
// error. World- or group-readable config files draw a warning, matching the
// vault file's owner-only policy.
func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: failed to stat config file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		fmt.Fprintf(os.Stderr, "warning: %s has insecure permissions %04o (expected 0600)\n", path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.VaultPath == "" {
		return errors.New("config: vault_path must not be empty")
	}
	if c.KeepBackups < 0 {
		return fmt.Errorf("config: keep_backups must not be negative, got %d", c.KeepBackups)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("config: idle_timeout must not be negative, got %s", c.IdleTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// baseDir returns the passkeep directory (~/.passkeep), falling back to a
// relative path when the home directory cannot be determined.
func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".passkeep"
	}
	return filepath.Join(home, ".passkeep")
}
