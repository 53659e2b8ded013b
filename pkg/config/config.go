/*
Package config manages TOML config for the popfill completion pipeline.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Match mode names accepted in the [match] section.
const (
	MatchFuzzy     = "fuzzy"
	MatchSmartCase = "smartcase"
	MatchExact     = "exact"
)

// Config holds the entire config structure.
type Config struct {
	Match   MatchConfig   `toml:"match"`
	Timing  TimingConfig  `toml:"timing"`
	Popup   PopupConfig   `toml:"popup"`
	Resolve ResolveConfig `toml:"resolve"`
}

// MatchConfig selects the prefix match predicate. Exactly one mode is
// active at a time.
type MatchConfig struct {
	Mode string `toml:"mode"`
}

// TimingConfig has debounce and estimator related options. Durations are
// in milliseconds.
type TimingConfig struct {
	EMAWindow     int `toml:"ema_window"`
	WarmupSamples int `toml:"warmup_samples"`
	SettleDelayMs int `toml:"settle_delay_ms"`
}

// PopupConfig holds candidate list options for the host popup.
type PopupConfig struct {
	MaxCandidates int  `toml:"max_candidates"`
	Dedupe        bool `toml:"dedupe"`
}

// ResolveConfig controls the deferred completionItem/resolve round trip.
type ResolveConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Match: MatchConfig{
			Mode: MatchSmartCase,
		},
		Timing: TimingConfig{
			EMAWindow:     10,
			WarmupSamples: 10,
			SettleDelayMs: 25,
		},
		Popup: PopupConfig{
			MaxCandidates: 64,
			Dedupe:        true,
		},
		Resolve: ResolveConfig{
			Enabled: true,
		},
	}
}

// GetDefaultConfigPath returns the default path for config.toml under the
// user config directory.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "popfill", "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: ~/.config/popfill/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing.
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); err != nil {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML file. Unknown or missing fields keep their
// default values; an invalid mode falls back to smartcase.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, err
	}
	config.normalize()
	return config, nil
}

// SaveConfig writes the config as TOML.
func SaveConfig(config *Config, configPath string) error {
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(config)
}

// normalize clamps obviously broken values back to defaults.
func (c *Config) normalize() {
	switch c.Match.Mode {
	case MatchFuzzy, MatchSmartCase, MatchExact:
	default:
		log.Warnf("Unknown match mode %q, falling back to %s", c.Match.Mode, MatchSmartCase)
		c.Match.Mode = MatchSmartCase
	}
	if c.Timing.EMAWindow < 1 {
		c.Timing.EMAWindow = 10
	}
	if c.Timing.WarmupSamples < 0 {
		c.Timing.WarmupSamples = 10
	}
	if c.Timing.SettleDelayMs < 0 {
		c.Timing.SettleDelayMs = 25
	}
	if c.Popup.MaxCandidates < 1 {
		c.Popup.MaxCandidates = 64
	}
}
