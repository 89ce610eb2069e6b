package service

import (
	"context"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// CurrencyService reads the stored currency catalog.
type CurrencyService struct {
	Store *database.Handle
}

func (s *CurrencyService) List(ctx context.Context) ([]repository.CurrencyInfo, error) {
	var out []repository.CurrencyInfo
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewCurrencyRepo(q).List(ctx)
		return err
	})
	return out, err
}

// inCatalog rejects code when a catalog is stored and does not list it. An
// empty catalog accepts every ISO code.
func inCatalog(ctx context.Context, q repository.Querier, field, code string) error {
	cur := repository.NewCurrencyRepo(q)
	n, err := cur.Count(ctx)
	if err != nil || n == 0 {
		return err
	}
	ok, err := cur.Has(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return invalid(field, "currency %q is not in the currency list", code)
	}
	return nil
}
