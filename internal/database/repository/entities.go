package repository

import (
	"context"
	"database/sql"
	"fmt"
)

const entityCols = `id, name, currency, COALESCE(icon, ''), COALESCE(color, ''), is_active, sort_order, created_at, updated_at`

// EntityRepo holds the operations shared by incomes, budgets and categories.
type EntityRepo struct {
	db Querier
}

func NewEntityRepo(db Querier) *EntityRepo { return &EntityRepo{db: db} }

func scanEntity(row scanner, kind Kind, extra ...any) (Entity, error) {
	var e Entity
	var active int
	var created, updated string
	dest := append([]any{&e.ID, &e.Name, &e.Currency, &e.Icon, &e.Color, &active, &e.SortOrder, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Entity{}, err
	}
	e.Kind = kind
	e.IsActive = active == 1
	e.CreatedAt = parseStamp(created)
	e.UpdatedAt = parseStamp(updated)
	return e, nil
}

// Get returns nil when the row does not exist.
func (r *EntityRepo) Get(ctx context.Context, kind Kind, id int64) (*Entity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entityCols+` FROM `+kind.Table()+` WHERE id = ?`, id)
	e, err := scanEntity(row, kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *EntityRepo) List(ctx context.Context, kind Kind, includeInactive bool) ([]Entity, error) {
	q := `SELECT ` + entityCols + ` FROM ` + kind.Table()
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY is_active DESC, sort_order, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindByName matches case-insensitively, preferring the active row.
func (r *EntityRepo) FindByName(ctx context.Context, kind Kind, name string) (*Entity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entityCols+` FROM `+kind.Table()+`
	WHERE name = ? COLLATE NOCASE ORDER BY is_active DESC, id DESC LIMIT 1`, name)
	e, err := scanEntity(row, kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// NameTaken reports whether another active row of kind already uses name.
func (r *EntityRepo) NameTaken(ctx context.Context, kind Kind, name string, excludeID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+kind.Table()+`
	WHERE is_active = 1 AND name = ? COLLATE NOCASE AND id != ?`, name, excludeID).Scan(&n)
	return n > 0, err
}

// NextSortOrder returns the position after the last active row.
func (r *EntityRepo) NextSortOrder(ctx context.Context, kind Kind) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order) + 1, 0) FROM `+kind.Table()+` WHERE is_active = 1`).Scan(&n)
	return n, err
}

func (r *EntityRepo) SetActive(ctx context.Context, kind Kind, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	_, err := r.db.ExecContext(ctx, `UPDATE `+kind.Table()+` SET is_active = ?, updated_at = datetime('now') WHERE id = ?`, v, id)
	return err
}

func (r *EntityRepo) SetSortOrder(ctx context.Context, kind Kind, id int64, order int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE `+kind.Table()+` SET sort_order = ?, updated_at = datetime('now') WHERE id = ?`, order, id)
	return err
}

func (r *EntityRepo) SetCurrency(ctx context.Context, kind Kind, id int64, currency string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE `+kind.Table()+` SET currency = ?, updated_at = datetime('now') WHERE id = ?`, currency, id)
	return err
}

func (r *EntityRepo) ActiveIDs(ctx context.Context, kind Kind) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM `+kind.Table()+` WHERE is_active = 1 ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Names returns every name of kind, used for suggestions.
func (r *EntityRepo) Names(ctx context.Context, kind Kind) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM `+kind.Table()+` ORDER BY is_active DESC, sort_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ActiveCurrencies returns the distinct currencies of all active entities.
func (r *EntityRepo) ActiveCurrencies(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT DISTINCT currency FROM (
	  SELECT currency FROM incomes WHERE is_active = 1
	  UNION
	  SELECT currency FROM budgets WHERE is_active = 1
	  UNION
	  SELECT currency FROM spending_types WHERE is_active = 1
	) ORDER BY currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func sumByColumn(ctx context.Context, db Querier, query string, args ...any) (map[int64]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}
	defer rows.Close()
	out := map[int64]int64{}
	for rows.Next() {
		var id sql.NullInt64
		var total int64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		if id.Valid {
			out[id.Int64] = total
		}
	}
	return out, rows.Err()
}
