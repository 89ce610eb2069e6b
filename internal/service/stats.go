package service

import (
	"context"
	"sort"
	"time"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// StatsService computes balances and reports. Date bounds are inclusive
// YYYY-MM-DD strings; an empty bound is open. An empty currency means the
// display currency. Approximated counts the rows converted at rate 1 for lack
// of any rate.
type StatsService struct {
	Store *database.Handle
	Now   func() time.Time
}

type Summary struct {
	Currency     string
	Income       int64
	Expense      int64
	Count        int
	Approximated int
}

type CategoryTotal struct {
	CategoryID int64
	Name       string
	Total      int64
	Count      int
}

type CategoryBreakdown struct {
	Currency     string
	Categories   []CategoryTotal
	Approximated int
}

type MonthTotal struct {
	Month  string // YYYY-MM
	Earned int64
	Spent  int64
}

type MonthlyTotals struct {
	Currency     string
	Months       []MonthTotal
	Approximated int
}

type DayTotal struct {
	Date  string
	Spent int64
}

type DailySpending struct {
	Currency     string
	Days         []DayTotal
	Approximated int
}

type TagTotal struct {
	TagID int64
	Name  string
	Color string
	Total int64
	Count int
}

type TagBreakdown struct {
	Currency     string
	Tags         []TagTotal
	Approximated int
}

// Holding is the native sum of active budget balances in one currency.
type Holding struct {
	Currency string
	Balance  int64
	Budgets  int
}

type MonthAmount struct {
	Month  string
	Amount int64
}

type MonthlyExpenses struct {
	Currency     string
	Months       []MonthAmount
	Approximated int
}

// converter resolves the target currency and rate book once per report.
type converter struct {
	target string
	book   *currency.RateBook
	approx int
}

func newConverter(ctx context.Context, q repository.Querier, target string) (*converter, error) {
	if target == "" {
		var err error
		if target, err = displayCurrency(ctx, q); err != nil {
			return nil, err
		}
	} else {
		target = currency.Normalize(target)
	}
	all, err := repository.NewRateRepo(q).All(ctx)
	if err != nil {
		return nil, err
	}
	return &converter{target: target, book: currency.NewRateBook(all)}, nil
}

func (c *converter) value(t repository.Transaction) int64 {
	v, how := c.book.Value(t, c.target)
	if how == currency.ResolvedIdentity {
		c.approx++
	}
	return v
}

func checkRange(from, to string) error {
	if from != "" {
		if err := validDate("from", from); err != nil {
			return err
		}
	}
	if to != "" {
		if err := validDate("to", to); err != nil {
			return err
		}
	}
	if from != "" && to != "" && from > to {
		return invalid("to", "%s is before %s", to, from)
	}
	return nil
}

// Balances returns every budget with its current balance.
func (s *StatsService) Balances(ctx context.Context, includeInactive bool) ([]repository.BudgetBalance, error) {
	var out []repository.BudgetBalance
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewBudgetRepo(q).Balances(ctx, includeInactive)
		return err
	})
	return out, err
}

// MonthlyEarned sums native earnings per income for the current month.
func (s *StatsService) MonthlyEarned(ctx context.Context) (map[int64]int64, error) {
	from, next := monthBounds(nowFunc(s.Now)())
	var out map[int64]int64
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewIncomeRepo(q).EarnedBetween(ctx, from, next)
		return err
	})
	return out, err
}

// MonthlySpent sums spending per category for the current month, in each
// category's currency.
func (s *StatsService) MonthlySpent(ctx context.Context) (map[int64]int64, error) {
	from, next := monthBounds(nowFunc(s.Now)())
	var out map[int64]int64
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewCategoryRepo(q).SpentBetween(ctx, from, next)
		return err
	})
	return out, err
}

// Summary totals earnings and spending over a range. Count includes transfers.
func (s *StatsService) Summary(ctx context.Context, from, to, target string) (Summary, error) {
	if err := checkRange(from, to); err != nil {
		return Summary{}, err
	}
	var out Summary
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		conv, err := newConverter(ctx, q, target)
		if err != nil {
			return err
		}
		txs, err := repository.NewTransactionRepo(q).Range(ctx, from, to)
		if err != nil {
			return err
		}
		out.Currency = conv.target
		for _, t := range txs {
			switch t.Type {
			case repository.Earning:
				out.Income += conv.value(t)
			case repository.Spending:
				out.Expense += conv.value(t)
			}
		}
		out.Count = len(txs)
		out.Approximated = conv.approx
		return nil
	})
	return out, err
}

// SpendingByCategory totals spending per category, largest first.
func (s *StatsService) SpendingByCategory(ctx context.Context, from, to, target string) (CategoryBreakdown, error) {
	if err := checkRange(from, to); err != nil {
		return CategoryBreakdown{}, err
	}
	var out CategoryBreakdown
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		conv, err := newConverter(ctx, q, target)
		if err != nil {
			return err
		}
		cats, err := repository.NewEntityRepo(q).List(ctx, repository.KindCategory, true)
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(cats))
		for _, c := range cats {
			names[c.ID] = c.Name
		}
		txs, err := repository.NewTransactionRepo(q).Range(ctx, from, to)
		if err != nil {
			return err
		}
		totals := map[int64]*CategoryTotal{}
		for _, t := range txs {
			if t.Type != repository.Spending || t.DestinationSpendingTypeID == nil {
				continue
			}
			id := *t.DestinationSpendingTypeID
			ct, ok := totals[id]
			if !ok {
				ct = &CategoryTotal{CategoryID: id, Name: names[id]}
				totals[id] = ct
			}
			ct.Total += conv.value(t)
			ct.Count++
		}
		for _, ct := range totals {
			out.Categories = append(out.Categories, *ct)
		}
		sort.Slice(out.Categories, func(i, j int) bool {
			a, b := out.Categories[i], out.Categories[j]
			if a.Total != b.Total {
				return a.Total > b.Total
			}
			return a.Name < b.Name
		})
		out.Currency = conv.target
		out.Approximated = conv.approx
		return nil
	})
	return out, err
}

// MonthlyTotals groups earnings and spending by calendar month, oldest first.
func (s *StatsService) MonthlyTotals(ctx context.Context, from, to, target string) (MonthlyTotals, error) {
	if err := checkRange(from, to); err != nil {
		return MonthlyTotals{}, err
	}
	var out MonthlyTotals
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		conv, err := newConverter(ctx, q, target)
		if err != nil {
			return err
		}
		txs, err := repository.NewTransactionRepo(q).Range(ctx, from, to)
		if err != nil {
			return err
		}
		for _, t := range txs {
			if t.Type == repository.Transfer {
				continue
			}
			m := monthOf(t.Date)
			if n := len(out.Months); n == 0 || out.Months[n-1].Month != m {
				out.Months = append(out.Months, MonthTotal{Month: m})
			}
			cur := &out.Months[len(out.Months)-1]
			if t.Type == repository.Earning {
				cur.Earned += conv.value(t)
			} else {
				cur.Spent += conv.value(t)
			}
		}
		out.Currency = conv.target
		out.Approximated = conv.approx
		return nil
	})
	return out, err
}

// DailySpending totals spending per day, oldest first.
func (s *StatsService) DailySpending(ctx context.Context, from, to, target string) (DailySpending, error) {
	if err := checkRange(from, to); err != nil {
		return DailySpending{}, err
	}
	var out DailySpending
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		conv, err := newConverter(ctx, q, target)
		if err != nil {
			return err
		}
		txs, err := repository.NewTransactionRepo(q).Range(ctx, from, to)
		if err != nil {
			return err
		}
		for _, t := range txs {
			if t.Type != repository.Spending {
				continue
			}
			if n := len(out.Days); n == 0 || out.Days[n-1].Date != t.Date {
				out.Days = append(out.Days, DayTotal{Date: t.Date})
			}
			out.Days[len(out.Days)-1].Spent += conv.value(t)
		}
		out.Currency = conv.target
		out.Approximated = conv.approx
		return nil
	})
	return out, err
}

// TagDistribution sums every tagged transaction per tag, largest first. A
// transaction with several tags counts toward each.
func (s *StatsService) TagDistribution(ctx context.Context, from, to, target string) (TagBreakdown, error) {
	if err := checkRange(from, to); err != nil {
		return TagBreakdown{}, err
	}
	var out TagBreakdown
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		conv, err := newConverter(ctx, q, target)
		if err != nil {
			return err
		}
		txRepo := repository.NewTransactionRepo(q)
		txs, err := txRepo.Range(ctx, from, to)
		if err != nil {
			return err
		}
		links, err := txRepo.TagLinks(ctx, from, to)
		if err != nil {
			return err
		}
		tags, err := repository.NewTagRepo(q).List(ctx)
		if err != nil {
			return err
		}
		byTx := make(map[int64]repository.Transaction, len(txs))
		for _, t := range txs {
			byTx[t.ID] = t
		}
		values := map[int64]int64{}
		totals := map[int64]*TagTotal{}
		for _, tg := range tags {
			totals[tg.ID] = &TagTotal{TagID: tg.ID, Name: tg.Name, Color: tg.Color}
		}
		for _, l := range links {
			t, ok := byTx[l.TransactionID]
			tt := totals[l.TagID]
			if !ok || tt == nil {
				continue
			}
			v, seen := values[t.ID]
			if !seen {
				v = conv.value(t)
				values[t.ID] = v
			}
			tt.Total += v
			tt.Count++
		}
		for _, tt := range totals {
			if tt.Count > 0 {
				out.Tags = append(out.Tags, *tt)
			}
		}
		sort.Slice(out.Tags, func(i, j int) bool {
			a, b := out.Tags[i], out.Tags[j]
			if a.Total != b.Total {
				return a.Total > b.Total
			}
			return a.Name < b.Name
		})
		out.Currency = conv.target
		out.Approximated = conv.approx
		return nil
	})
	return out, err
}

// CurrencyHoldings groups active budget balances by currency, unconverted.
func (s *StatsService) CurrencyHoldings(ctx context.Context) ([]Holding, error) {
	balances, err := s.Balances(ctx, false)
	if err != nil {
		return nil, err
	}
	byCode := map[string]*Holding{}
	var out []Holding
	for _, b := range balances {
		h, ok := byCode[b.Currency]
		if !ok {
			h = &Holding{Currency: b.Currency}
			byCode[b.Currency] = h
		}
		h.Balance += b.Balance
		h.Budgets++
	}
	for _, h := range byCode {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// FilteredMonthlyExpenses totals spending per month for transactions carrying
// any of tagIDs and/or landing in any of categoryIDs. Each transaction counts
// once however many of the tags it carries.
func (s *StatsService) FilteredMonthlyExpenses(ctx context.Context, from, to string, tagIDs, categoryIDs []int64, target string) (MonthlyExpenses, error) {
	if err := checkRange(from, to); err != nil {
		return MonthlyExpenses{}, err
	}
	var out MonthlyExpenses
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		conv, err := newConverter(ctx, q, target)
		if err != nil {
			return err
		}
		list, err := repository.NewTransactionRepo(q).List(ctx, repository.TransactionFilters{
			Type:        repository.Spending,
			From:        from,
			To:          to,
			TagIDs:      tagIDs,
			CategoryIDs: categoryIDs,
		})
		if err != nil {
			return err
		}
		byMonth := map[string]int64{}
		for _, d := range list {
			byMonth[monthOf(d.Date)] += conv.value(d.Transaction)
		}
		for m, v := range byMonth {
			out.Months = append(out.Months, MonthAmount{Month: m, Amount: v})
		}
		sort.Slice(out.Months, func(i, j int) bool { return out.Months[i].Month < out.Months[j].Month })
		out.Currency = conv.target
		out.Approximated = conv.approx
		return nil
	})
	return out, err
}
