package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/moneysync/internal/database/repository"
)

func schemaOf(t *testing.T, path string) []string {
	t.Helper()
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.Query(`SELECT type || ' ' || name || ' ' || COALESCE(sql, '') FROM sqlite_master
	WHERE name NOT LIKE 'sqlite_%' ORDER BY type, name`)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())
	return out
}

func execAll(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
}

func TestRunMigrationsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	require.NoError(t, RunMigrations(path))

	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(LatestVersion), v)

	schema := schemaOf(t, path)
	for _, table := range []string{"incomes", "budgets", "spending_types", "tags", "transactions",
		"transaction_tags", "exchange_rates", "settings", "currencies"} {
		assert.Contains(t, schema, findPrefix(schema, "table "+table+" "), table)
	}
}

func findPrefix(list []string, prefix string) string {
	for _, s := range list {
		if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
			return s
		}
	}
	return "missing: " + prefix
}

func TestRunMigrationsTwiceIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	require.NoError(t, RunMigrations(path))
	before := schemaOf(t, path)
	require.NoError(t, RunMigrations(path))
	assert.Equal(t, before, schemaOf(t, path))
}

func TestStepwiseMigrationMatchesSingleLoad(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.db")
	require.NoError(t, RunMigrations(full))

	for k := uint(1); k < LatestVersion; k++ {
		stepwise := filepath.Join(dir, "stepwise.db")
		require.NoError(t, MigrateTo(stepwise, k))
		v, _, err := SchemaVersion(stepwise)
		require.NoError(t, err)
		require.Equal(t, k, v)
		require.NoError(t, RunMigrations(stepwise))
		assert.Equal(t, schemaOf(t, full), schemaOf(t, stepwise), "from version %d", k)
		require.NoError(t, removeDB(stepwise))
	}
}

func TestMoneyColumnsBecomeMinorUnits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	require.NoError(t, MigrateTo(path, 2))
	execAll(t, path,
		`INSERT INTO incomes(name, currency, expected_amount) VALUES('Salary', 'USD', 99.99)`,
		`INSERT INTO budgets(name, currency, initial_balance) VALUES('Cash', 'USD', 12345.67)`,
		`INSERT INTO spending_types(name, currency) VALUES('Food', 'EUR')`,
		`INSERT INTO transactions(type, source_budget_id, destination_spending_type_id, amount, source_currency,
		  converted_amount, destination_currency, exchange_rate, date)
		 VALUES('spending', 1, 1, 20.5, 'USD', 18.86, 'EUR', 0.92, '2024-03-01')`,
	)
	require.NoError(t, RunMigrations(path))

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	in, err := repository.NewIncomeRepo(db).Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9999), in.ExpectedAmount)

	b, err := repository.NewBudgetRepo(db).Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), b.InitialBalance)

	tx, err := repository.NewTransactionRepo(db).Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2050), tx.Amount)
	require.NotNil(t, tx.ConvertedAmount)
	assert.Equal(t, int64(1886), *tx.ConvertedAmount)
	assert.Equal(t, "Cash", tx.SourceName)
	assert.Equal(t, "Food", tx.DestinationName)

	c, err := repository.NewCategoryRepo(db).Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Currency)
}

func TestLargeAmountsScanAsIntegers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.db")
	require.NoError(t, RunMigrations(path))
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	id, err := repository.NewBudgetRepo(db).Insert(ctx, repository.Budget{
		Entity:         repository.Entity{Name: "Savings", Currency: "USD"},
		InitialBalance: 100_000_000_00,
	})
	require.NoError(t, err)
	b, err := repository.NewBudgetRepo(db).Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000_00), b.InitialBalance)
}

func TestSecretSettingsPurged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.db")
	require.NoError(t, MigrateTo(path, 5))
	execAll(t, path,
		`INSERT INTO settings(key, value) VALUES('github_token', 'ghp_x'), ('github_repo', 'me/ledger'),
		 ('encryption_password', 'pw'), ('theme', 'dark')`)
	require.NoError(t, RunMigrations(path))

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	all, err := repository.NewSettingsRepo(db).All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"display_currency": "USD", "theme": "dark"}, all)
}

func TestActiveNameUniqueness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unique.db")
	require.NoError(t, RunMigrations(path))
	execAll(t, path,
		`INSERT INTO budgets(name, currency) VALUES('Cash', 'USD')`,
		`UPDATE budgets SET is_active = 0 WHERE name = 'Cash'`,
		`INSERT INTO budgets(name, currency) VALUES('Cash', 'USD')`,
	)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`INSERT INTO budgets(name, currency) VALUES('Cash', 'EUR')`)
	require.Error(t, err, "two active rows may not share a name")
	_, err = db.Exec(`UPDATE budgets SET is_active = 1 WHERE id = 1`)
	require.Error(t, err, "reactivating a duplicate conflicts")
}

func TestFailedMigrationIsFatalAndSticky(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	require.NoError(t, MigrateTo(path, 6))
	execAll(t, path, `CREATE TABLE incomes_new (id INTEGER)`)

	err := RunMigrations(path)
	require.ErrorIs(t, err, ErrMigration)

	_, dirty, verr := SchemaVersion(path)
	require.NoError(t, verr)
	assert.True(t, dirty)

	require.ErrorIs(t, RunMigrations(path), ErrMigration)
}
