package rates

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// Refresher stores today's rates for every directed pair of active currencies.
type Refresher struct {
	handle   *database.Handle
	provider Provider
	now      func() time.Time
	log      *zap.Logger
}

// NewRefresher wires a refresher. now may be nil.
func NewRefresher(h *database.Handle, p Provider, now func() time.Time, log *zap.Logger) *Refresher {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{handle: h, provider: p, now: now, log: log}
}

// Currencies returns the refresh set: active entity currencies, the display
// currency and the reference currency.
func Currencies(ctx context.Context, q repository.Querier) ([]string, error) {
	active, err := repository.NewEntityRepo(q).ActiveCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	display, ok, err := repository.NewSettingsRepo(q).Get(ctx, repository.SettingDisplayCurrency)
	if err != nil {
		return nil, err
	}
	if !ok {
		display = currency.Reference
	}
	set := map[string]bool{currency.Reference: true, currency.Normalize(display): true}
	for _, c := range active {
		set[currency.Normalize(c)] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Refresh fetches rates unless today's table is already complete. It returns
// the number of rates stored. Bases the provider cannot serve are skipped.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	today := repository.FormatDate(r.now().UTC())

	var currencies []string
	complete := false
	err := r.handle.Read(ctx, func(q repository.Querier) error {
		var err error
		if currencies, err = Currencies(ctx, q); err != nil {
			return err
		}
		if len(currencies) < 2 {
			complete = true
			return nil
		}
		n, err := repository.NewRateRepo(q).PairsOn(ctx, today, currencies)
		if err != nil {
			return err
		}
		complete = n >= len(currencies)*(len(currencies)-1)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("check rates: %w", err)
	}
	if complete {
		r.log.Debug("rates up to date", zap.Strings("currencies", currencies))
		return 0, nil
	}

	var fetched []repository.ExchangeRate
	for _, base := range currencies {
		table, err := r.provider.RatesFor(ctx, base)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			r.log.Warn("skipping base currency", zap.String("base", base), zap.Error(err))
			continue
		}
		for _, target := range currencies {
			if target == base {
				continue
			}
			if rate, ok := lookup(table, target); ok && rate > 0 {
				fetched = append(fetched, repository.ExchangeRate{Base: base, Target: target, Rate: rate, Date: today})
			}
		}
	}
	if len(fetched) == 0 {
		return 0, nil
	}

	err = r.handle.Write(ctx, func(q repository.Querier) error {
		rates := repository.NewRateRepo(q)
		for _, x := range fetched {
			if err := rates.Upsert(ctx, x); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store rates: %w", err)
	}
	r.log.Info("rates refreshed", zap.Int("stored", len(fetched)), zap.String("date", today))
	return len(fetched), nil
}

func lookup(table map[string]float64, code string) (float64, bool) {
	if v, ok := table[code]; ok {
		return v, true
	}
	for k, v := range table {
		if currency.Normalize(k) == code {
			return v, true
		}
	}
	return 0, false
}
