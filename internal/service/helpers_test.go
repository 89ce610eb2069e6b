package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func newTestLedger(t *testing.T) (*Ledger, *database.Handle) {
	t.Helper()
	ctx := context.Background()
	h, err := database.Load(ctx, database.Options{
		Path:   filepath.Join(t.TempDir(), "ledger.db"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(context.Background()) })

	l := New(h, zaptest.NewLogger(t))
	l.Transactions.Now = fixedNow
	l.Stats.Now = fixedNow
	l.Rates.Now = fixedNow
	return l, h
}

func addEntity(t *testing.T, l *Ledger, kind repository.Kind, name, cur string, amount int64) int64 {
	t.Helper()
	id, err := l.Entities.Add(context.Background(), kind, EntityInput{Name: name, Currency: cur, Amount: amount})
	require.NoError(t, err)
	return id
}

func addTx(t *testing.T, l *Ledger, in TransactionInput) int64 {
	t.Helper()
	id, err := l.Transactions.Create(context.Background(), in)
	require.NoError(t, err)
	return id
}

func setRate(t *testing.T, l *Ledger, base, target, date string, rate float64) {
	t.Helper()
	require.NoError(t, l.Rates.Set(context.Background(), base, target, date, rate))
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

func balanceOf(t *testing.T, l *Ledger, id int64) int64 {
	t.Helper()
	all, err := l.Stats.Balances(context.Background(), true)
	require.NoError(t, err)
	for _, b := range all {
		if b.ID == id {
			return b.Balance
		}
	}
	t.Fatalf("budget %d not found", id)
	return 0
}
