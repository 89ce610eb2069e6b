package service

import (
	"context"
	"strings"
	"time"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database/repository"
)

const monthLayout = "2006-01"

type TrendPoint struct {
	Month   string // YYYY-MM
	Balance int64
}

type Trend struct {
	Currency     string
	Points       []TrendPoint
	Approximated int
}

func monthOf(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}

// monthBounds returns the first day of t's month and of the next month.
func monthBounds(t time.Time) (string, string) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return repository.FormatDate(first), repository.FormatDate(first.AddDate(0, 1, 0))
}

func parseMonth(field, s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid(field, "%q is not a YYYY-MM month", s)
	}
	return t, nil
}

// Trend returns the month-end total of active budgets from start through end
// (YYYY-MM, inclusive). The opening figure is the sum of initial balances at
// the latest known rates; each month then adds budget inflows and subtracts
// budget outflows, every transaction valued through its own dated rate. An
// empty end is the current month; an empty start is eleven months before end.
func (s *StatsService) Trend(ctx context.Context, start, end, target string) (Trend, error) {
	var endM time.Time
	var err error
	if strings.TrimSpace(end) == "" {
		now := nowFunc(s.Now)()
		endM = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else if endM, err = parseMonth("end", end); err != nil {
		return Trend{}, err
	}
	startM := endM.AddDate(0, -11, 0)
	if strings.TrimSpace(start) != "" {
		if startM, err = parseMonth("start", start); err != nil {
			return Trend{}, err
		}
	}
	if startM.After(endM) {
		return Trend{}, invalid("end", "%s is before %s", endM.Format(monthLayout), startM.Format(monthLayout))
	}

	var out Trend
	err = s.Store.Read(ctx, func(q repository.Querier) error {
		conv, err := newConverter(ctx, q, target)
		if err != nil {
			return err
		}
		out.Currency = conv.target

		budgets, err := repository.NewBudgetRepo(q).List(ctx, false)
		if err != nil {
			return err
		}
		var running int64
		for _, b := range budgets {
			rate, how := conv.book.LatestRate(b.Currency, conv.target)
			if how == currency.ResolvedIdentity {
				conv.approx++
			}
			running += currency.Apply(b.InitialBalance, rate)
		}

		txRepo := repository.NewTransactionRepo(q)
		earliest, err := txRepo.EarliestDate(ctx)
		if err != nil {
			return err
		}
		if earliest == "" {
			out.Points = []TrendPoint{{Month: startM.Format(monthLayout), Balance: running}}
			out.Approximated = conv.approx
			return nil
		}

		_, afterEnd := monthBounds(endM)
		txs, err := txRepo.Range(ctx, "", afterEnd)
		if err != nil {
			return err
		}
		net := map[string]int64{}
		for _, t := range txs {
			if t.Date >= afterEnd {
				continue
			}
			in := t.DestinationBudgetID != nil
			outflow := t.SourceBudgetID != nil
			if !in && !outflow {
				continue
			}
			v := conv.value(t)
			m := monthOf(t.Date)
			if in {
				net[m] += v
			}
			if outflow {
				net[m] -= v
			}
		}

		first, err := parseMonth("date", monthOf(earliest))
		if err != nil {
			return err
		}
		if startM.Before(first) {
			first = startM
		}
		for m := first; !m.After(endM); m = m.AddDate(0, 1, 0) {
			key := m.Format(monthLayout)
			running += net[key]
			if !m.Before(startM) {
				out.Points = append(out.Points, TrendPoint{Month: key, Balance: running})
			}
		}
		out.Approximated = conv.approx
		return nil
	})
	return out, err
}
