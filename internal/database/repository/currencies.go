package repository

import (
	"context"
	"database/sql"
	"strings"
)

// CurrencyRepo handles the currency catalog.
type CurrencyRepo struct {
	db Querier
}

func NewCurrencyRepo(db Querier) *CurrencyRepo { return &CurrencyRepo{db: db} }

// ReplaceAll swaps the catalog for rows. Codes are stored upper-case.
func (r *CurrencyRepo) ReplaceAll(ctx context.Context, rows []CurrencyInfo) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM currencies`); err != nil {
		return err
	}
	for _, c := range rows {
		if _, err := r.db.ExecContext(ctx, `
		INSERT INTO currencies(code, name, fetched_at) VALUES(?, ?, datetime('now'))
		ON CONFLICT(code) DO UPDATE SET name = excluded.name`,
			strings.ToUpper(c.Code), c.Name); err != nil {
			return err
		}
	}
	return nil
}

// List returns the catalog ordered by code.
func (r *CurrencyRepo) List(ctx context.Context) ([]CurrencyInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, name, fetched_at FROM currencies ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CurrencyInfo
	for rows.Next() {
		var c CurrencyInfo
		var stamp string
		if err := rows.Scan(&c.Code, &c.Name, &stamp); err != nil {
			return nil, err
		}
		c.FetchedAt = parseStamp(stamp)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of catalog rows.
func (r *CurrencyRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM currencies`).Scan(&n)
	return n, err
}

// Has reports whether code is in the catalog.
func (r *CurrencyRepo) Has(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM currencies WHERE code = ?`, strings.ToUpper(code)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
