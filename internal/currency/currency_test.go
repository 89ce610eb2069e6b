package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/moneysync/internal/database/repository"
)

func ptr[T any](v T) *T { return &v }

func tx(amount int64, src, date string) repository.Transaction {
	return repository.Transaction{Amount: amount, SourceCurrency: src, Date: date}
}

func book() *RateBook {
	return NewRateBook([]repository.ExchangeRate{
		{Base: "EUR", Target: "GBP", Rate: 0.90, Date: "2024-03-01"},
		{Base: "EUR", Target: "GBP", Rate: 0.80, Date: "2024-01-01"},
		{Base: "EUR", Target: "GBP", Rate: 0.85, Date: "2024-02-01"},
		{Base: "EUR", Target: "USD", Rate: 1.10, Date: "2024-01-01"},
		{Base: "EUR", Target: "USD", Rate: 1.20, Date: "2024-06-01"},
		{Base: "USD", Target: "JPY", Rate: 150, Date: "2024-01-01"},
		{Base: "USD", Target: "JPY", Rate: 140, Date: "2024-05-01"},
	})
}

func TestValueNativeAndConverted(t *testing.T) {
	b := book()
	v, res := b.Value(tx(1000, "USD", "2024-01-01"), "USD")
	assert.Equal(t, int64(1000), v)
	assert.Equal(t, ResolvedNative, res)

	cross := tx(2000, "USD", "2024-01-01")
	cross.ConvertedAmount = ptr(int64(1840))
	cross.DestinationCurrency = ptr("EUR")
	cross.ExchangeRate = ptr(0.92)
	v, res = b.Value(cross, "EUR")
	assert.Equal(t, int64(1840), v)
	assert.Equal(t, ResolvedConverted, res)
}

func TestValueDirectUsesRateOnOrBeforeDate(t *testing.T) {
	b := book()
	v, res := b.Value(tx(1000, "EUR", "2024-02-15"), "GBP")
	assert.Equal(t, ResolvedDirect, res)
	assert.Equal(t, int64(850), v)

	v, _ = b.Value(tx(1000, "EUR", "2024-03-01"), "GBP")
	assert.Equal(t, int64(900), v, "same-day rate counts")

	v, _ = b.Value(tx(1000, "EUR", "2030-01-01"), "GBP")
	assert.Equal(t, int64(900), v)
}

func TestValueFallsBackToEarliestRateForOlderTransactions(t *testing.T) {
	v, res := book().Value(tx(1000, "EUR", "2023-06-01"), "GBP")
	assert.Equal(t, ResolvedDirect, res)
	assert.Equal(t, int64(800), v, "earliest rate, not latest")
}

func TestValueIndirectUsesLatestLegs(t *testing.T) {
	v, res := book().Value(tx(1000, "EUR", "2024-01-15"), "JPY")
	assert.Equal(t, ResolvedIndirect, res)
	assert.Equal(t, int64(168000), v, "1.20 * 140, both latest regardless of date")
}

func TestValueIdentityFallbackForUnknownCurrency(t *testing.T) {
	b := NewRateBook([]repository.ExchangeRate{{Base: "AAA", Target: "BBB", Rate: 2, Date: "2024-01-01"}})
	v, res := b.Value(tx(1234, "CCC", "2024-01-01"), "BBB")
	assert.Equal(t, int64(1234), v)
	assert.Equal(t, ResolvedIdentity, res)
}

func TestIndirectNeedsBothLegs(t *testing.T) {
	b := NewRateBook([]repository.ExchangeRate{{Base: "EUR", Target: "USD", Rate: 1.1, Date: "2024-01-01"}})
	_, ok := b.Indirect("EUR", "CHF")
	assert.False(t, ok)
	_, res := b.Value(tx(100, "EUR", "2024-01-01"), "CHF")
	assert.Equal(t, ResolvedIdentity, res)
}

func TestLatestRatePolicy(t *testing.T) {
	b := book()
	r, res := b.LatestRate("EUR", "GBP")
	assert.Equal(t, ResolvedDirect, res)
	assert.True(t, r.Equal(decimal.RequireFromString("0.9")))

	r, res = b.LatestRate("EUR", "JPY")
	assert.Equal(t, ResolvedIndirect, res)
	assert.True(t, r.Equal(decimal.RequireFromString("168")))

	r, res = b.LatestRate("GBP", "EUR")
	assert.Equal(t, ResolvedIdentity, res, "inverse rates are never derived")
	assert.True(t, r.Equal(decimal.NewFromInt(1)))

	_, res = b.LatestRate("CHF", "CHF")
	assert.Equal(t, ResolvedNative, res)
}

// Trend bases use the latest rate while transactions use the dated rate; the
// two policies give different answers for the same historical day.
func TestLatestAndDatedPoliciesDiverge(t *testing.T) {
	b := book()
	dated, _ := b.Value(tx(10000, "EUR", "2024-01-15"), "GBP")
	latest, _ := b.LatestRate("EUR", "GBP")
	assert.Equal(t, int64(8000), dated)
	assert.Equal(t, int64(9000), Apply(10000, latest))
}

func TestApplyRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int64(920), Apply(1000, decimal.RequireFromString("0.92")))
	assert.Equal(t, int64(3), Apply(5, decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(-3), Apply(-5, decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(1), Apply(1, decimal.RequireFromString("0.5")))
}

func TestKnownAndFormat(t *testing.T) {
	assert.True(t, Known("usd"))
	assert.True(t, Known(" EUR "))
	assert.False(t, Known("XYZQ"))

	assert.Equal(t, "$1,234.56", Format(123456, "USD"))
	assert.Contains(t, Format(123456, "JPY"), "1,235")
	assert.Equal(t, "12.34 XYZQ", Format(1234, "xyzq"))
	require.Equal(t, "-$5.00", Format(-500, "USD"))
}
