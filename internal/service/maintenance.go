package service

import (
	"context"
	"fmt"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// MaintenanceService houses destructive actions.
type MaintenanceService struct {
	Store *database.Handle
}

// Reset wipes all ledger data. The schema, the currency catalog, the display
// currency and the ledger id stay; ids are not reused afterwards.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	return s.Store.Write(ctx, func(q repository.Querier) error {
		tables := []string{
			"transaction_tags",
			"transactions",
			"tags",
			"exchange_rates",
			"spending_types",
			"budgets",
			"incomes",
		}
		for _, t := range tables {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		_, err := q.ExecContext(ctx, `DELETE FROM settings WHERE key NOT IN (?, ?)`,
			repository.SettingDisplayCurrency, repository.SettingLedgerID)
		return err
	})
}
