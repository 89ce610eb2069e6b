// Package service holds the ledger operations: validation, entity lifecycle,
// transactions, tags, reports and backups. Every mutation runs in one store
// transaction.
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// Ledger bundles every service over one store.
type Ledger struct {
	Entities     *EntityService
	Transactions *TransactionService
	Tags         *TagService
	Settings     *SettingsService
	Rates        *RateService
	Currencies   *CurrencyService
	Stats        *StatsService
	Backups      *BackupService
	Maintenance  *MaintenanceService
}

// New wires every service to h. log may be nil.
func New(h *database.Handle, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		Entities:     &EntityService{Store: h, Log: log},
		Transactions: &TransactionService{Store: h},
		Tags:         &TagService{Store: h},
		Settings:     &SettingsService{Store: h},
		Rates:        &RateService{Store: h},
		Currencies:   &CurrencyService{Store: h},
		Stats:        &StatsService{Store: h},
		Backups:      &BackupService{Store: h, Log: log},
		Maintenance:  &MaintenanceService{Store: h},
	}
}

func nowFunc(fn func() time.Time) func() time.Time {
	if fn == nil {
		return time.Now
	}
	return fn
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// validCurrency normalizes code and checks it against the ISO table.
func validCurrency(field, code string) (string, error) {
	c := currency.Normalize(code)
	if c == "" {
		return "", invalid(field, "currency is required")
	}
	if !currency.Known(c) {
		return "", invalid(field, "unknown currency %q", c)
	}
	return c, nil
}

func validDate(field, s string) error {
	if _, err := repository.ParseDate(s); err != nil {
		return invalid(field, "%q is not a YYYY-MM-DD date", s)
	}
	return nil
}
