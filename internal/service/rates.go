package service

import (
	"context"
	"strings"
	"time"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// RateService edits the exchange rate cache by hand.
type RateService struct {
	Store *database.Handle
	Now   func() time.Time
}

// Set stores base->target at rate for date (today when empty), replacing any
// rate for the same day.
func (s *RateService) Set(ctx context.Context, base, target, date string, rate float64) error {
	b, err := validCurrency("base", base)
	if err != nil {
		return err
	}
	t, err := validCurrency("target", target)
	if err != nil {
		return err
	}
	if b == t {
		return invalid("target", "base and target are both %s", b)
	}
	if rate <= 0 {
		return invalid("rate", "must be positive")
	}
	date = strings.TrimSpace(date)
	if date == "" {
		date = repository.FormatDate(nowFunc(s.Now)().UTC())
	} else if err := validDate("date", date); err != nil {
		return err
	}
	return s.Store.Write(ctx, func(q repository.Querier) error {
		if err := inCatalog(ctx, q, "base", b); err != nil {
			return err
		}
		if err := inCatalog(ctx, q, "target", t); err != nil {
			return err
		}
		return repository.NewRateRepo(q).Upsert(ctx, repository.ExchangeRate{Base: b, Target: t, Rate: rate, Date: date})
	})
}

func (s *RateService) List(ctx context.Context) ([]repository.ExchangeRate, error) {
	var out []repository.ExchangeRate
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewRateRepo(q).All(ctx)
		return err
	})
	return out, err
}
