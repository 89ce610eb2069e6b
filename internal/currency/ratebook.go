// Package currency converts ledger amounts between currencies using the
// cached exchange rates.
package currency

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jask/moneysync/internal/database/repository"
)

// Reference is the currency used for two-hop conversions.
const Reference = "USD"

// Resolution records which step of the conversion chain produced a value.
type Resolution int

const (
	ResolvedNative    Resolution = iota // source currency already matches
	ResolvedConverted                   // stored converted amount matches
	ResolvedDirect                      // direct rate, dated on/before or earliest
	ResolvedIndirect                    // via Reference using latest rates
	ResolvedIdentity                    // no data, rate 1
)

func (r Resolution) String() string {
	switch r {
	case ResolvedNative:
		return "native"
	case ResolvedConverted:
		return "converted"
	case ResolvedDirect:
		return "direct"
	case ResolvedIndirect:
		return "indirect"
	case ResolvedIdentity:
		return "identity"
	}
	return "unknown"
}

type pair struct{ base, target string }

type point struct {
	date string
	rate decimal.Decimal
}

// RateBook is an in-memory index of every cached rate: per directed pair,
// points sorted by date. Build one per request.
type RateBook struct {
	pairs map[pair][]point
}

// NewRateBook indexes rates. Input order does not matter.
func NewRateBook(rates []repository.ExchangeRate) *RateBook {
	b := &RateBook{pairs: map[pair][]point{}}
	for _, r := range rates {
		k := pair{r.Base, r.Target}
		b.pairs[k] = append(b.pairs[k], point{date: r.Date, rate: decimal.NewFromFloat(r.Rate)})
	}
	for k, pts := range b.pairs {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].date < pts[j].date })
		b.pairs[k] = pts
	}
	return b
}

// AsOf returns the most recent rate dated on or before date, falling back to
// the earliest rate for the pair when every rate is newer.
func (b *RateBook) AsOf(base, target, date string) (decimal.Decimal, bool) {
	pts := b.pairs[pair{base, target}]
	if len(pts) == 0 {
		return decimal.Decimal{}, false
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].date > date })
	if i == 0 {
		return pts[0].rate, true
	}
	return pts[i-1].rate, true
}

// Latest returns the most recently dated rate for the pair.
func (b *RateBook) Latest(base, target string) (decimal.Decimal, bool) {
	pts := b.pairs[pair{base, target}]
	if len(pts) == 0 {
		return decimal.Decimal{}, false
	}
	return pts[len(pts)-1].rate, true
}

// Indirect multiplies the latest base->Reference and Reference->target rates.
func (b *RateBook) Indirect(base, target string) (decimal.Decimal, bool) {
	a, ok := b.Latest(base, Reference)
	if !ok {
		return decimal.Decimal{}, false
	}
	c, ok := b.Latest(Reference, target)
	if !ok {
		return decimal.Decimal{}, false
	}
	return a.Mul(c), true
}

// LatestRate resolves base->target from latest rates only: direct, then via
// Reference, then identity. Balance trend bases and currency changes use this
// policy; per-transaction conversion uses Value.
func (b *RateBook) LatestRate(base, target string) (decimal.Decimal, Resolution) {
	if base == target {
		return decimal.NewFromInt(1), ResolvedNative
	}
	if r, ok := b.Latest(base, target); ok {
		return r, ResolvedDirect
	}
	if r, ok := b.Indirect(base, target); ok {
		return r, ResolvedIndirect
	}
	return decimal.NewFromInt(1), ResolvedIdentity
}

// Value returns t's amount expressed in target minor units.
func (b *RateBook) Value(t repository.Transaction, target string) (int64, Resolution) {
	if t.SourceCurrency == target {
		return t.Amount, ResolvedNative
	}
	if t.DestinationCurrency != nil && *t.DestinationCurrency == target && t.ConvertedAmount != nil {
		return *t.ConvertedAmount, ResolvedConverted
	}
	if r, ok := b.AsOf(t.SourceCurrency, target, t.Date); ok {
		return Apply(t.Amount, r), ResolvedDirect
	}
	if r, ok := b.Indirect(t.SourceCurrency, target); ok {
		return Apply(t.Amount, r), ResolvedIndirect
	}
	return t.Amount, ResolvedIdentity
}

// Apply converts amount by rate, rounding half away from zero.
func Apply(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// Float returns rate as stored in exchange_rate columns.
func Float(rate decimal.Decimal) float64 {
	f, _ := rate.Float64()
	return f
}
