package repository

import (
	"context"
	"database/sql"
)

// RateRepo handles the exchange rate cache.
type RateRepo struct {
	db Querier
}

func NewRateRepo(db Querier) *RateRepo { return &RateRepo{db: db} }

// Upsert stores a rate; the same (base, target, date) overwrites.
func (r *RateRepo) Upsert(ctx context.Context, x ExchangeRate) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO exchange_rates(base_currency, target_currency, rate, date, fetched_at)
	VALUES(?, ?, ?, ?, datetime('now'))
	ON CONFLICT(base_currency, target_currency, date)
	DO UPDATE SET rate = excluded.rate, fetched_at = datetime('now')`,
		x.Base, x.Target, x.Rate, x.Date)
	return err
}

// All returns every cached rate ordered by pair then date.
func (r *RateRepo) All(ctx context.Context) ([]ExchangeRate, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT base_currency, target_currency, rate, date FROM exchange_rates
	ORDER BY base_currency, target_currency, date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExchangeRate
	for rows.Next() {
		var x ExchangeRate
		if err := rows.Scan(&x.Base, &x.Target, &x.Rate, &x.Date); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// Latest returns the most recent rate for the pair, or nil.
func (r *RateRepo) Latest(ctx context.Context, base, target string) (*float64, error) {
	var v float64
	err := r.db.QueryRowContext(ctx, `
	SELECT rate FROM exchange_rates WHERE base_currency = ? AND target_currency = ?
	ORDER BY date DESC LIMIT 1`, base, target).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// PairsOn counts distinct directed pairs among currencies that have a rate dated day.
func (r *RateRepo) PairsOn(ctx context.Context, day string, currencies []string) (int, error) {
	if len(currencies) == 0 {
		return 0, nil
	}
	args := []any{day}
	for _, c := range currencies {
		args = append(args, c)
	}
	for _, c := range currencies {
		args = append(args, c)
	}
	ph := placeholders(len(currencies))
	var n int
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM (
	  SELECT DISTINCT base_currency, target_currency FROM exchange_rates
	  WHERE date = ? AND base_currency IN (`+ph+`) AND target_currency IN (`+ph+`)
	    AND base_currency != target_currency
	)`, args...).Scan(&n)
	return n, err
}
