package repository

import (
	"context"
	"database/sql"
)

// TagRepo handles tags and their transaction associations.
type TagRepo struct {
	db Querier
}

func NewTagRepo(db Querier) *TagRepo { return &TagRepo{db: db} }

func scanTag(row scanner) (Tag, error) {
	var t Tag
	var created string
	if err := row.Scan(&t.ID, &t.Name, &t.Color, &created); err != nil {
		return Tag{}, err
	}
	t.CreatedAt = parseStamp(created)
	return t, nil
}

func (r *TagRepo) Insert(ctx context.Context, name, color string) (int64, error) {
	if color == "" {
		color = DefaultTagColor
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `INSERT INTO tags(name, color) VALUES(?, ?) RETURNING id`, name, color).Scan(&id)
	return id, err
}

// Ensure returns the id of the tag named name (case-insensitive), creating it
// with color if absent.
func (r *TagRepo) Ensure(ctx context.Context, name, color string) (int64, error) {
	existing, err := r.ByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	return r.Insert(ctx, name, color)
}

func (r *TagRepo) Update(ctx context.Context, t Tag) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tags SET name = ?, color = ? WHERE id = ?`, t.Name, t.Color, t.ID)
	return err
}

// Delete removes the tag and its associations.
func (r *TagRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transaction_tags WHERE tag_id = ?`, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	return err
}

func (r *TagRepo) Get(ctx context.Context, id int64) (*Tag, error) {
	t, err := scanTag(r.db.QueryRowContext(ctx, `SELECT id, name, color, created_at FROM tags WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ByName matches case-insensitively.
func (r *TagRepo) ByName(ctx context.Context, name string) (*Tag, error) {
	t, err := scanTag(r.db.QueryRowContext(ctx, `SELECT id, name, color, created_at FROM tags WHERE name = ? COLLATE NOCASE ORDER BY id LIMIT 1`, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// List orders tags by most recent use, unused tags last, then by name.
func (r *TagRepo) List(ctx context.Context) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT t.id, t.name, t.color, t.created_at
	FROM tags t
	LEFT JOIN transaction_tags tt ON tt.tag_id = t.id
	LEFT JOIN transactions tx ON tx.id = tt.transaction_id
	GROUP BY t.id
	ORDER BY MAX(tx.date) IS NULL, MAX(tx.date) DESC, t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Attach is idempotent.
func (r *TagRepo) Attach(ctx context.Context, transactionID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO transaction_tags(transaction_id, tag_id) VALUES(?, ?)`, transactionID, tagID)
	return err
}

func (r *TagRepo) Detach(ctx context.Context, transactionID, tagID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = ? AND tag_id = ?`, transactionID, tagID)
	return err
}

// Replace sets the transaction's tags to exactly tagIDs.
func (r *TagRepo) Replace(ctx context.Context, transactionID int64, tagIDs []int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = ?`, transactionID); err != nil {
		return err
	}
	for _, id := range tagIDs {
		if err := r.Attach(ctx, transactionID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *TagRepo) ForTransaction(ctx context.Context, transactionID int64) ([]Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT t.id, t.name, t.color, t.created_at
	FROM tags t JOIN transaction_tags tt ON tt.tag_id = t.id
	WHERE tt.transaction_id = ? ORDER BY t.name`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountExisting returns how many of ids exist.
func (r *TagRepo) CountExisting(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT id) FROM tags WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...).Scan(&n)
	return n, err
}
