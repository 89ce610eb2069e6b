package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MONEYSYNC_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dir", cfg.Cache.Backend)
	require.Equal(t, 500*time.Millisecond, cfg.Cache.Debounce)
	require.Equal(t, "none", cfg.Sync.Backend)
	require.Equal(t, "money-tracker.enc", cfg.Sync.Path)
	require.Equal(t, 2*time.Second, cfg.Sync.Debounce)
	require.Equal(t, "USD", cfg.UI.DisplayCurrency)
	require.Contains(t, cfg.Rates.Primary, "/v1/currencies")
	require.Contains(t, cfg.Rates.Fallback, "/v1/currencies")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MONEYSYNC_CONFIG", "")
	t.Setenv("MONEYSYNC_SYNC_BACKEND", "s3")
	t.Setenv("MONEYSYNC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "s3", cfg.Sync.Backend)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("MONEYSYNC_CONFIG", filepath.Join(dir, "nested", "config.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(dir, "ledger.db")
	cfg.Sync.Backend = "github"
	cfg.Sync.GitHub.Repo = "someone/ledger"
	cfg.Sync.GitHub.Token = "ghp_secret"
	cfg.Sync.Debounce = 3 * time.Second
	cfg.UI.DisplayCurrency = "EUR"
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg.Database.Path, got.Database.Path)
	require.Equal(t, "github", got.Sync.Backend)
	require.Equal(t, "someone/ledger", got.Sync.GitHub.Repo)
	require.Equal(t, 3*time.Second, got.Sync.Debounce)
	require.Equal(t, "EUR", got.UI.DisplayCurrency)
	require.Empty(t, got.Sync.GitHub.Token)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MONEYSYNC_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	require.Error(t, err)
}
