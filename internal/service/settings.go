package service

import (
	"context"
	"strings"
	"time"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// SettingsService reads and writes the settings table.
type SettingsService struct {
	Store *database.Handle
}

func (s *SettingsService) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	var ok bool
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		v, ok, err = repository.NewSettingsRepo(q).Get(ctx, key)
		return err
	})
	return v, ok, err
}

func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewSettingsRepo(q).All(ctx)
		return err
	})
	return out, err
}

// Set stores a setting. The display currency is validated.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalid("key", "key is required")
	}
	display := key == repository.SettingDisplayCurrency
	if display {
		c, err := validCurrency("value", value)
		if err != nil {
			return err
		}
		value = c
	}
	return s.Store.Write(ctx, func(q repository.Querier) error {
		if display {
			if err := inCatalog(ctx, q, "value", value); err != nil {
				return err
			}
		}
		return repository.NewSettingsRepo(q).Set(ctx, key, value)
	})
}

func (s *SettingsService) Delete(ctx context.Context, key string) error {
	if key == repository.SettingDisplayCurrency || key == repository.SettingLedgerID {
		return invalid("key", "%s cannot be removed", key)
	}
	return s.Store.Write(ctx, func(q repository.Querier) error {
		return repository.NewSettingsRepo(q).Delete(ctx, key)
	})
}

// DisplayCurrency returns the configured reporting currency, USD when unset.
func (s *SettingsService) DisplayCurrency(ctx context.Context) (string, error) {
	var out string
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = displayCurrency(ctx, q)
		return err
	})
	return out, err
}

func (s *SettingsService) SetDisplayCurrency(ctx context.Context, code string) error {
	return s.Set(ctx, repository.SettingDisplayCurrency, code)
}

// LastSync returns the time of the last successful push or pull.
func (s *SettingsService) LastSync(ctx context.Context) (time.Time, bool, error) {
	v, ok, err := s.Get(ctx, repository.SettingLastSyncTime)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func displayCurrency(ctx context.Context, q repository.Querier) (string, error) {
	v, ok, err := repository.NewSettingsRepo(q).Get(ctx, repository.SettingDisplayCurrency)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return currency.Reference, nil
	}
	return currency.Normalize(v), nil
}
