package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/moneysync/internal/database/repository"
)

// setupEnv points config, cache, credentials and the remote at a temp dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("MONEYSYNC_CONFIG", "")
	t.Setenv("MONEYSYNC_DATABASE_PATH", filepath.Join(dir, "work", "work.db"))
	t.Setenv("MONEYSYNC_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("MONEYSYNC_SYNC_BACKEND", "dir")
	t.Setenv("MONEYSYNC_SYNC_DIR", filepath.Join(dir, "remote"))
	t.Setenv(envPassword, "hunter2")
	return dir
}

func execute(t *testing.T, args ...string) (subcommands.ExitStatus, string) {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	defer func() { stdout = prev }()

	fs := flag.NewFlagSet("moneysync", flag.ContinueOnError)
	c := subcommands.NewCommander(fs, "moneysync")
	register(c)
	require.NoError(t, fs.Parse(args))
	return c.Execute(context.Background()), buf.String()
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	status, out := execute(t, args...)
	require.Equal(t, subcommands.ExitSuccess, status, "moneysync %v: %s", args, out)
	return out
}

func TestLedgerWorkflow(t *testing.T) {
	dir := setupEnv(t)

	out := mustRun(t, "init")
	assert.Contains(t, out, "currency USD")

	mustRun(t, "budget", "add", "-c", "USD", "-amount", "100", "Cash")
	mustRun(t, "income", "add", "-c", "USD", "-amount", "3000", "Salary")
	mustRun(t, "category", "add", "-c", "usd", "Food")
	mustRun(t, "sync", "init")

	mustRun(t, "tx", "add", "-t", "earning", "-from", "Salary", "-to", "Cash", "-amount", "50", "-d", "2024-03-01")

	status, _ := execute(t, "tx", "add", "-from", "Cash", "-to", "Food", "-amount", "18.40", "-tags", "groceries")
	assert.Equal(t, subcommands.ExitFailure, status, "unknown tag")

	mustRun(t, "tag", "add", "groceries")
	mustRun(t, "tx", "add", "-from", "Cash", "-to", "Food", "-amount", "18.40", "-tags", "groceries", "-d", "2024-03-02")

	out = mustRun(t, "balances")
	assert.Contains(t, out, "Cash")
	assert.Contains(t, out, "$131.60")

	out = mustRun(t, "tx", "list", "-tags", "groceries")
	assert.Contains(t, out, "2024-03-02")
	assert.NotContains(t, out, "2024-03-01")

	out = mustRun(t, "report", "summary", "-from", "2024-03-01", "-to", "2024-03-31")
	assert.Contains(t, out, "$50.00")
	assert.Contains(t, out, "$18.40")

	status, _ = execute(t, "category", "add", "-c", "USD", "food")
	assert.Equal(t, subcommands.ExitUsageError, status, "duplicate name is a validation error")

	status, _ = execute(t, "budget", "deactivate", "Csh")
	assert.Equal(t, subcommands.ExitFailure, status)

	// every command flushes its push on exit
	_, err := os.Stat(filepath.Join(dir, "remote", "money-tracker.enc"))
	require.NoError(t, err)

	backup := filepath.Join(dir, "backup.enc")
	mustRun(t, "export", backup)
	mustRun(t, "reset", "-yes")
	out = mustRun(t, "balances")
	assert.NotContains(t, out, "Cash")

	mustRun(t, "import", backup)
	out = mustRun(t, "balances")
	assert.Contains(t, out, "$131.60")

	out = mustRun(t, "settings", repository.SettingDisplayCurrency)
	assert.Equal(t, "USD\n", out)
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t)
	status, _ := execute(t, "tx", "add", "-t", "gift", "-from", "a", "-to", "b", "-amount", "1")
	assert.Equal(t, subcommands.ExitUsageError, status)

	status, _ = execute(t, "reset")
	assert.Equal(t, subcommands.ExitUsageError, status)

	status, _ = execute(t, "export")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestSyncNotConfigured(t *testing.T) {
	setupEnv(t)
	t.Setenv("MONEYSYNC_SYNC_BACKEND", "none")
	status, _ := execute(t, "sync", "push")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]int64{"12": 1200, "12.5": 1250, "0.01": 1, " 3.40 ": 340, "-2": -200}
	for in, want := range cases {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "abc", "1.234"} {
		_, err := parseAmount(in)
		assert.ErrorIs(t, err, errUsage, in)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, splitList(" a, ,b c,"))
	assert.Nil(t, splitList(""))
}

func TestEndpointKinds(t *testing.T) {
	src, dst, ok := endpointKinds(repository.Spending)
	require.True(t, ok)
	assert.Equal(t, repository.KindBudget, src)
	assert.Equal(t, repository.KindCategory, dst)
	_, _, ok = endpointKinds("gift")
	assert.False(t, ok)
}
