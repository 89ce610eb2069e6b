package repository

import (
	"context"
	"database/sql"
)

// BudgetRepo handles budgets.
type BudgetRepo struct {
	db Querier
}

func NewBudgetRepo(db Querier) *BudgetRepo { return &BudgetRepo{db: db} }

func (r *BudgetRepo) Insert(ctx context.Context, b Budget) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
	INSERT INTO budgets(name, currency, initial_balance, icon, color, sort_order)
	VALUES(?, ?, ?, ?, ?, ?) RETURNING id`,
		b.Name, b.Currency, b.InitialBalance, b.Icon, b.Color, b.SortOrder).Scan(&id)
	return id, err
}

func (r *BudgetRepo) Update(ctx context.Context, b Budget) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE budgets SET name = ?, currency = ?, initial_balance = ?, icon = ?, color = ?, updated_at = datetime('now')
	WHERE id = ?`, b.Name, b.Currency, b.InitialBalance, b.Icon, b.Color, b.ID)
	return err
}

func scanBudget(row scanner, extra ...any) (Budget, error) {
	var b Budget
	e, err := scanEntity(row, KindBudget, append([]any{&b.InitialBalance}, extra...)...)
	b.Entity = e
	return b, err
}

func (r *BudgetRepo) Get(ctx context.Context, id int64) (*Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, `SELECT `+entityCols+`, initial_balance FROM budgets WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *BudgetRepo) List(ctx context.Context, includeInactive bool) ([]Budget, error) {
	q := `SELECT ` + entityCols + `, initial_balance FROM budgets`
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY is_active DESC, sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Balances computes initial_balance plus inflows (converted when the
// destination currency is set) minus native outflows for each budget.
func (r *BudgetRepo) Balances(ctx context.Context, includeInactive bool) ([]BudgetBalance, error) {
	q := `
	SELECT ` + entityCols + `, initial_balance,
	  initial_balance
	  + COALESCE((SELECT SUM(CASE WHEN t.destination_currency IS NOT NULL THEN t.converted_amount ELSE t.amount END)
	      FROM transactions t WHERE t.destination_budget_id = budgets.id), 0)
	  - COALESCE((SELECT SUM(t.amount) FROM transactions t WHERE t.source_budget_id = budgets.id), 0)
	FROM budgets`
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY is_active DESC, sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BudgetBalance
	for rows.Next() {
		var bal int64
		b, err := scanBudget(rows, &bal)
		if err != nil {
			return nil, err
		}
		out = append(out, BudgetBalance{Budget: b, Balance: bal})
	}
	return out, rows.Err()
}
