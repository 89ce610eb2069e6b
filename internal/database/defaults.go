package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/jask/moneysync/internal/database/repository"
)

// SeedDefaults ensures baseline settings exist. It is idempotent and safe to
// run on every startup; it reports whether anything was written.
func SeedDefaults(ctx context.Context, db *sql.DB) (bool, error) {
	settings := repository.NewSettingsRepo(db)
	seeded := false
	defaults := map[string]func() string{
		repository.SettingDisplayCurrency: func() string { return "USD" },
		repository.SettingLedgerID:        func() string { return uuid.NewString() },
	}
	for key, value := range defaults {
		_, ok, err := settings.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			continue
		}
		if err := settings.Set(ctx, key, value()); err != nil {
			return false, err
		}
		seeded = true
	}
	return seeded, nil
}
