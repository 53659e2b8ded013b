package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[match]
mode = "fuzzy"

[timing]
ema_window = 20
settle_delay_ms = 40

[popup]
max_candidates = 16
dedupe = false

[resolve]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, MatchFuzzy, cfg.Match.Mode)
	require.Equal(t, 20, cfg.Timing.EMAWindow)
	require.Equal(t, 40, cfg.Timing.SettleDelayMs)
	require.Equal(t, 16, cfg.Popup.MaxCandidates)
	require.False(t, cfg.Popup.Dedupe)
	require.False(t, cfg.Resolve.Enabled)
	// Untouched sections keep their defaults.
	require.Equal(t, 10, cfg.Timing.WarmupSamples)
}

func TestLoadConfigNormalizesBrokenValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[match]
mode = "regex"

[timing]
ema_window = 0
settle_delay_ms = -5

[popup]
max_candidates = 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, MatchSmartCase, cfg.Match.Mode)
	require.Equal(t, 10, cfg.Timing.EMAWindow)
	require.Equal(t, 25, cfg.Timing.SettleDelayMs)
	require.Equal(t, 64, cfg.Popup.MaxCandidates)
}

func TestInitConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	// A second call reads the file it just wrote.
	again, err := InitConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Match.Mode = MatchExact
	cfg.Popup.MaxCandidates = 8

	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
