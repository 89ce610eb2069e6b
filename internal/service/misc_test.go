package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/moneysync/internal/database/repository"
)

func TestTags(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)
	food := addEntity(t, l, repository.KindCategory, "Food", "USD", 0)

	a, err := l.Tags.Add(ctx, "alpha", "")
	require.NoError(t, err)
	b, err := l.Tags.Add(ctx, "beta", "#ff0000")
	require.NoError(t, err)
	_, err = l.Tags.Add(ctx, "ALPHA", "")
	require.ErrorIs(t, err, ErrValidation)

	addTx(t, l, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 1, Date: "2024-03-01", TagIDs: []int64{b}})
	list, err := l.Tags.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "beta", list[0].Name, "recently used first")
	assert.Equal(t, repository.DefaultTagColor, list[1].Color)

	require.ErrorIs(t, l.Tags.Update(ctx, a, str("Beta"), nil), ErrValidation)
	require.NoError(t, l.Tags.Update(ctx, a, str("gamma"), str("#00ff00")))
	got, err := l.Tags.Resolve(ctx, "GAMMA")
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", got.Color)

	_, err = l.Tags.Resolve(ctx, "gama")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "gamma")

	require.NoError(t, l.Tags.Delete(ctx, b))
	require.ErrorIs(t, l.Tags.Delete(ctx, b), ErrNotFound)
	txs, err := l.Transactions.List(ctx, repository.TransactionFilters{})
	require.NoError(t, err)
	assert.Empty(t, txs[0].Tags)
}

func TestSettings(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	cur, err := l.Settings.DisplayCurrency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", cur)

	require.NoError(t, l.Settings.SetDisplayCurrency(ctx, "eur"))
	cur, err = l.Settings.DisplayCurrency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cur)
	require.ErrorIs(t, l.Settings.SetDisplayCurrency(ctx, "NOPE"), ErrValidation)

	require.NoError(t, l.Settings.Set(ctx, "theme", "dark"))
	v, ok, err := l.Settings.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
	require.NoError(t, l.Settings.Delete(ctx, "theme"))
	_, ok, err = l.Settings.Get(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, ok)
	require.ErrorIs(t, l.Settings.Delete(ctx, repository.SettingLedgerID), ErrValidation)

	_, ok, err = l.Settings.LastSync(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := l.Settings.All(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all[repository.SettingLedgerID])
}

func TestRateSetValidation(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	require.ErrorIs(t, l.Rates.Set(ctx, "USD", "USD", "", 1), ErrValidation)
	require.ErrorIs(t, l.Rates.Set(ctx, "USD", "EUR", "", 0), ErrValidation)
	require.ErrorIs(t, l.Rates.Set(ctx, "USD", "EUR", "March", 1), ErrValidation)

	require.NoError(t, l.Rates.Set(ctx, "usd", "eur", "", 0.9))
	require.NoError(t, l.Rates.Set(ctx, "USD", "EUR", "2024-03-15", 0.91))
	rates, err := l.Rates.List(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 1, "same day overwrites")
	assert.Equal(t, repository.ExchangeRate{Base: "USD", Target: "EUR", Rate: 0.91, Date: "2024-03-15"}, rates[0])
}

func TestReset(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	newSmallLedger(t, l)
	require.NoError(t, l.Settings.SetDisplayCurrency(ctx, "EUR"))
	require.NoError(t, l.Settings.Set(ctx, "theme", "dark"))
	ledgerID, _, err := l.Settings.Get(ctx, repository.SettingLedgerID)
	require.NoError(t, err)

	require.NoError(t, l.Maintenance.Reset(ctx))

	n, err := l.Transactions.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	budgets, err := l.Entities.Budgets(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, budgets)
	all, err := l.Settings.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		repository.SettingDisplayCurrency: "EUR",
		repository.SettingLedgerID:        ledgerID,
	}, all)

	id := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)
	assert.Greater(t, id, int64(2), "ids are not reused")
}

func TestSuggest(t *testing.T) {
	names := []string{"Groceries", "Gas", "Rent", "groceries", "Restaurants"}
	assert.Equal(t, []string{"Groceries"}, suggest("grocerys", names))
	assert.Equal(t, []string{"Rent"}, suggest("rnt", names))
	assert.Empty(t, suggest("zzzzzzzz", names))
	assert.Equal(t, []string{"Rent", "Restaurants"}, suggest("rest", names), "closest first")
}

func TestCurrencyCatalogRestrictsCodes(t *testing.T) {
	l, h := newTestLedger(t)
	ctx := context.Background()

	// empty catalog: any ISO code
	jpy := addEntity(t, l, repository.KindCategory, "Travel", "JPY", 0)

	require.NoError(t, h.Write(ctx, func(q repository.Querier) error {
		return repository.NewCurrencyRepo(q).ReplaceAll(ctx, []repository.CurrencyInfo{
			{Code: "usd", Name: "US Dollar"},
			{Code: "EUR", Name: "Euro"},
		})
	}))
	list, err := l.Currencies.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "EUR", list[0].Code)
	assert.Equal(t, "USD", list[1].Code)

	addEntity(t, l, repository.KindBudget, "Wallet", "eur", 0)
	_, err = l.Entities.Add(ctx, repository.KindBudget, EntityInput{Name: "Yen", Currency: "JPY"})
	require.ErrorIs(t, err, ErrValidation)
	err = l.Entities.Update(ctx, repository.KindCategory, jpy, EntityPatch{Currency: str("GBP")})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, l.Settings.SetDisplayCurrency(ctx, "GBP"), ErrValidation)
	require.ErrorIs(t, l.Rates.Set(ctx, "USD", "GBP", "", 0.8), ErrValidation)
	require.NoError(t, l.Rates.Set(ctx, "USD", "EUR", "", 0.9))

	require.NoError(t, l.Maintenance.Reset(ctx))
	list, err = l.Currencies.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2, "reset keeps the catalog")
}
