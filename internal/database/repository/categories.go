package repository

import "context"

// CategoryRepo handles spending categories.
type CategoryRepo struct {
	db Querier
}

func NewCategoryRepo(db Querier) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) Insert(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
	INSERT INTO spending_types(name, currency, icon, color, sort_order)
	VALUES(?, ?, ?, ?, ?) RETURNING id`,
		c.Name, c.Currency, c.Icon, c.Color, c.SortOrder).Scan(&id)
	return id, err
}

func (r *CategoryRepo) Update(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE spending_types SET name = ?, icon = ?, color = ?, updated_at = datetime('now')
	WHERE id = ?`, c.Name, c.Icon, c.Color, c.ID)
	return err
}

func (r *CategoryRepo) Get(ctx context.Context, id int64) (*Category, error) {
	e, err := NewEntityRepo(r.db).Get(ctx, KindCategory, id)
	if err != nil || e == nil {
		return nil, err
	}
	return &Category{Entity: *e}, nil
}

func (r *CategoryRepo) List(ctx context.Context, includeInactive bool) ([]Category, error) {
	es, err := NewEntityRepo(r.db).List(ctx, KindCategory, includeInactive)
	if err != nil {
		return nil, err
	}
	out := make([]Category, len(es))
	for i, e := range es {
		out[i] = Category{Entity: e}
	}
	return out, nil
}

// SpentBetween sums converted-or-native spending per category for dates in [from, to).
func (r *CategoryRepo) SpentBetween(ctx context.Context, from, to string) (map[int64]int64, error) {
	return sumByColumn(ctx, r.db, `
	SELECT destination_spending_type_id, COALESCE(SUM(COALESCE(converted_amount, amount)), 0)
	FROM transactions
	WHERE type = 'spending' AND date >= ? AND date < ?
	GROUP BY destination_spending_type_id`, from, to)
}
