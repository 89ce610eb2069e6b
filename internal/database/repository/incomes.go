package repository

import (
	"context"
	"database/sql"
)

// IncomeRepo handles incomes.
type IncomeRepo struct {
	db Querier
}

func NewIncomeRepo(db Querier) *IncomeRepo { return &IncomeRepo{db: db} }

func (r *IncomeRepo) Insert(ctx context.Context, in Income) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
	INSERT INTO incomes(name, currency, expected_amount, icon, color, sort_order)
	VALUES(?, ?, ?, ?, ?, ?) RETURNING id`,
		in.Name, in.Currency, in.ExpectedAmount, in.Icon, in.Color, in.SortOrder).Scan(&id)
	return id, err
}

func (r *IncomeRepo) Update(ctx context.Context, in Income) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE incomes SET name = ?, currency = ?, expected_amount = ?, icon = ?, color = ?, updated_at = datetime('now')
	WHERE id = ?`, in.Name, in.Currency, in.ExpectedAmount, in.Icon, in.Color, in.ID)
	return err
}

func scanIncome(row scanner) (Income, error) {
	var in Income
	e, err := scanEntity(row, KindIncome, &in.ExpectedAmount)
	in.Entity = e
	return in, err
}

func (r *IncomeRepo) Get(ctx context.Context, id int64) (*Income, error) {
	in, err := scanIncome(r.db.QueryRowContext(ctx, `SELECT `+entityCols+`, expected_amount FROM incomes WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &in, nil
}

func (r *IncomeRepo) List(ctx context.Context, includeInactive bool) ([]Income, error) {
	q := `SELECT ` + entityCols + `, expected_amount FROM incomes`
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY is_active DESC, sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// EarnedBetween sums native earning amounts per income for dates in [from, to).
func (r *IncomeRepo) EarnedBetween(ctx context.Context, from, to string) (map[int64]int64, error) {
	return sumByColumn(ctx, r.db, `
	SELECT source_income_id, COALESCE(SUM(amount), 0)
	FROM transactions
	WHERE type = 'earning' AND date >= ? AND date < ?
	GROUP BY source_income_id`, from, to)
}
