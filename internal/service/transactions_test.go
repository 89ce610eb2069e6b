package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/moneysync/internal/database/repository"
)

func TestCashSalaryFoodScenario(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 10000)
	salary := addEntity(t, l, repository.KindIncome, "Salary", "USD", 0)
	food := addEntity(t, l, repository.KindCategory, "Food", "EUR", 0)

	addTx(t, l, TransactionInput{Type: repository.Earning, SourceID: salary, DestinationID: cash, Amount: 5000})
	assert.Equal(t, int64(15000), balanceOf(t, l, cash))

	id := addTx(t, l, TransactionInput{
		Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 2000,
		ConvertedAmount: i64(1840), ExchangeRate: f64(0.92),
	})
	assert.Equal(t, int64(13000), balanceOf(t, l, cash))

	spent, err := l.Stats.MonthlySpent(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1840), spent[food])

	earned, err := l.Stats.MonthlyEarned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), earned[salary])

	d, err := l.Transactions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "USD", d.SourceCurrency)
	assert.Equal(t, "EUR", *d.DestinationCurrency)
	assert.Equal(t, "2024-03-15", d.Date)
	assert.Equal(t, "Cash", d.SourceName)
	assert.Equal(t, "Food", d.DestinationName)
}

func TestTransactionShapeValidation(t *testing.T) {
	l, h := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)
	euro := addEntity(t, l, repository.KindBudget, "Euro", "EUR", 0)
	salary := addEntity(t, l, repository.KindIncome, "Salary", "USD", 0)
	food := addEntity(t, l, repository.KindCategory, "Food", "USD", 0)
	retired := addEntity(t, l, repository.KindCategory, "Old", "USD", 0)
	require.NoError(t, l.Entities.Deactivate(ctx, repository.KindCategory, retired))
	gen := h.Generation()

	cases := []struct {
		name string
		in   TransactionInput
	}{
		{"unknown type", TransactionInput{Type: "refund", SourceID: cash, DestinationID: food, Amount: 1}},
		{"zero amount", TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food}},
		{"bad date", TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 1, Date: "15/03/2024"}},
		{"earning into category", TransactionInput{Type: repository.Earning, SourceID: salary, DestinationID: food, Amount: 1}},
		{"spending from income", TransactionInput{Type: repository.Spending, SourceID: salary, DestinationID: food, Amount: 1}},
		{"self transfer", TransactionInput{Type: repository.Transfer, SourceID: cash, DestinationID: cash, Amount: 1}},
		{"missing destination", TransactionInput{Type: repository.Spending, SourceID: cash, Amount: 1}},
		{"inactive destination", TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: retired, Amount: 1}},
		{"cross fields on same currency", TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 1, ConvertedAmount: i64(1)}},
		{"negative rate", TransactionInput{Type: repository.Transfer, SourceID: cash, DestinationID: euro, Amount: 1, ExchangeRate: f64(-1)}},
		{"unknown tag", TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 1, TagIDs: []int64{42}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Transactions.Create(ctx, tc.in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, gen, h.Generation())
	n, err := l.Transactions.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransferMissingBudgetsAreRequired(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)

	for _, in := range []TransactionInput{
		{Type: repository.Transfer, Amount: 1},
		{Type: repository.Transfer, DestinationID: cash, Amount: 1},
		{Type: repository.Transfer, SourceID: cash, Amount: 1},
	} {
		_, err := l.Transactions.Create(ctx, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Reason, "required")
		assert.NotContains(t, verr.Reason, "different")
	}
}

func TestCrossCurrencyDerivation(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)
	euro := addEntity(t, l, repository.KindBudget, "Euro", "EUR", 0)
	setRate(t, l, "USD", "EUR", "2024-01-01", 0.8)
	setRate(t, l, "USD", "EUR", "2024-03-01", 0.9)

	derived := addTx(t, l, TransactionInput{Type: repository.Transfer, SourceID: cash, DestinationID: euro, Amount: 1000})
	fromRate := addTx(t, l, TransactionInput{Type: repository.Transfer, SourceID: cash, DestinationID: euro, Amount: 1000, ExchangeRate: f64(0.955)})
	fromAmount := addTx(t, l, TransactionInput{Type: repository.Transfer, SourceID: cash, DestinationID: euro, Amount: 1000, ConvertedAmount: i64(930)})

	for id, want := range map[int64]struct {
		converted int64
		rate      float64
	}{
		derived:    {900, 0.9},
		fromRate:   {955, 0.955},
		fromAmount: {930, 0.93},
	} {
		d, err := l.Transactions.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, d.ConvertedAmount)
		assert.Equal(t, want.converted, *d.ConvertedAmount)
		assert.InDelta(t, want.rate, *d.ExchangeRate, 1e-9)
		assert.Equal(t, "EUR", *d.DestinationCurrency)
	}
	assert.Equal(t, int64(900+955+930), balanceOf(t, l, euro))
	assert.Equal(t, int64(-3000), balanceOf(t, l, cash))
}

func TestUpdateKeepsDeactivatedEndpoint(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)
	food := addEntity(t, l, repository.KindCategory, "Food", "USD", 0)
	rent := addEntity(t, l, repository.KindCategory, "Rent", "USD", 0)
	tag, err := l.Tags.Add(ctx, "weekly", "")
	require.NoError(t, err)
	id := addTx(t, l, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 100, TagIDs: []int64{tag}})
	require.NoError(t, l.Entities.Deactivate(ctx, repository.KindCategory, food))

	require.NoError(t, l.Transactions.Update(ctx, id, TransactionInput{
		Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 250, Date: "2024-02-01", Comment: "fixed",
	}))
	d, err := l.Transactions.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(250), d.Amount)
	assert.Equal(t, "2024-02-01", d.Date)
	assert.Equal(t, "fixed", d.Comment)
	assert.Empty(t, d.Tags, "tags are replaced")

	require.NoError(t, l.Entities.Deactivate(ctx, repository.KindCategory, rent))
	err = l.Transactions.Update(ctx, id, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: rent, Amount: 250})
	require.ErrorIs(t, err, ErrValidation, "moving to another inactive entity is rejected")

	err = l.Transactions.Update(ctx, 404, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTransactionCascadesTags(t *testing.T) {
	l, h := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)
	food := addEntity(t, l, repository.KindCategory, "Food", "USD", 0)
	tag, err := l.Tags.Add(ctx, "weekly", "")
	require.NoError(t, err)
	id := addTx(t, l, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 100, TagIDs: []int64{tag, tag}})

	require.NoError(t, l.Transactions.Delete(ctx, id))
	require.ErrorIs(t, l.Transactions.Delete(ctx, id), ErrNotFound)
	_, err = l.Transactions.Get(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	var links int
	require.NoError(t, h.Read(ctx, func(q repository.Querier) error {
		return q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transaction_tags`).Scan(&links)
	}))
	assert.Zero(t, links)

	tags, err := l.Tags.List(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1, "the tag itself survives")
}

func TestListFilters(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	cash := addEntity(t, l, repository.KindBudget, "Cash", "USD", 0)
	salary := addEntity(t, l, repository.KindIncome, "Salary", "USD", 0)
	food := addEntity(t, l, repository.KindCategory, "Food", "USD", 0)
	rent := addEntity(t, l, repository.KindCategory, "Rent", "USD", 0)
	tag, err := l.Tags.Add(ctx, "weekly", "")
	require.NoError(t, err)

	addTx(t, l, TransactionInput{Type: repository.Earning, SourceID: salary, DestinationID: cash, Amount: 1000, Date: "2024-01-01"})
	addTx(t, l, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 10, Date: "2024-01-05", TagIDs: []int64{tag}})
	addTx(t, l, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: rent, Amount: 500, Date: "2024-02-01"})
	last := addTx(t, l, TransactionInput{Type: repository.Spending, SourceID: cash, DestinationID: food, Amount: 20, Date: "2024-02-10"})

	all, err := l.Transactions.List(ctx, repository.TransactionFilters{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, last, all[0].ID, "newest first")

	spending, err := l.Transactions.List(ctx, repository.TransactionFilters{Type: repository.Spending, From: "2024-01-05", To: "2024-02-01"})
	require.NoError(t, err)
	assert.Len(t, spending, 2)

	tagged, err := l.Transactions.List(ctx, repository.TransactionFilters{TagIDs: []int64{tag}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "weekly", tagged[0].Tags[0].Name)

	page, err := l.Transactions.List(ctx, repository.TransactionFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := l.Transactions.List(ctx, repository.TransactionFilters{Offset: 3})
	require.NoError(t, err)
	require.Len(t, rest, 1, "offset applies without a limit")
	assert.Equal(t, repository.Earning, rest[0].Type)

	forFood, err := l.Transactions.ForEntity(ctx, repository.KindCategory, food, 0)
	require.NoError(t, err)
	assert.Len(t, forFood, 2)
	forCash, err := l.Transactions.ForEntity(ctx, repository.KindBudget, cash, 0)
	require.NoError(t, err)
	assert.Len(t, forCash, 4)

	_, err = l.Transactions.List(ctx, repository.TransactionFilters{From: "January"})
	require.ErrorIs(t, err, ErrValidation)
}
