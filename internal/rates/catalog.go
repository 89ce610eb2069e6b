package rates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// CatalogSource lists currency codes with their display names.
type CatalogSource interface {
	CurrencyNames(ctx context.Context) (map[string]string, error)
}

// RefreshCatalog replaces the stored currency catalog. When src fails the
// built-in list is stored instead and fellBack is true.
func RefreshCatalog(ctx context.Context, h *database.Handle, src CatalogSource, log *zap.Logger) (stored int, fellBack bool, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	var entries []currency.Entry
	if src != nil {
		names, ferr := src.CurrencyNames(ctx)
		if ferr != nil && ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		if ferr != nil {
			log.Warn("currency list unavailable, using built-in list", zap.Error(ferr))
		}
		entries = currency.FromNames(names)
	}
	if len(entries) == 0 {
		entries = currency.Fallback()
		fellBack = true
	}

	rows := make([]repository.CurrencyInfo, len(entries))
	for i, e := range entries {
		rows[i] = repository.CurrencyInfo{Code: e.Code, Name: e.Name}
	}
	err = h.Write(ctx, func(q repository.Querier) error {
		return repository.NewCurrencyRepo(q).ReplaceAll(ctx, rows)
	})
	if err != nil {
		return 0, false, fmt.Errorf("store currency catalog: %w", err)
	}
	log.Info("currency catalog refreshed", zap.Int("stored", len(rows)), zap.Bool("fallback", fellBack))
	return len(rows), fellBack, nil
}

// EnsureCatalog fills the catalog only when it is empty.
func EnsureCatalog(ctx context.Context, h *database.Handle, src CatalogSource, log *zap.Logger) error {
	var n int
	err := h.Read(ctx, func(q repository.Querier) error {
		var err error
		n, err = repository.NewCurrencyRepo(q).Count(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("count currency catalog: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, _, err = RefreshCatalog(ctx, h, src, log)
	return err
}
