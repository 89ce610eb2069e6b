package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TransactionFilters defines list filters. Zero values disable a filter.
type TransactionFilters struct {
	Type        TransactionType
	From        string // inclusive, YYYY-MM-DD
	To          string // inclusive, YYYY-MM-DD
	TagIDs      []int64
	CategoryIDs []int64
	Kind        Kind // with EntityID: transactions touching that entity in any role
	EntityID    int64
	Limit       int
	Offset      int
}

// TagLink is one transaction/tag association.
type TagLink struct {
	TransactionID int64
	TagID         int64
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db Querier
}

func NewTransactionRepo(db Querier) *TransactionRepo { return &TransactionRepo{db: db} }

const txCols = `t.id, t.type, t.source_income_id, t.source_budget_id, t.destination_budget_id,
 t.destination_spending_type_id, t.amount, t.source_currency, t.converted_amount, t.destination_currency,
 t.exchange_rate, t.date, t.comment, t.created_at, t.updated_at`

const detailJoins = `
 LEFT JOIN incomes i ON i.id = t.source_income_id
 LEFT JOIN budgets sb ON sb.id = t.source_budget_id
 LEFT JOIN budgets db ON db.id = t.destination_budget_id
 LEFT JOIN spending_types st ON st.id = t.destination_spending_type_id`

const detailNames = `,
 COALESCE(CASE WHEN t.type = 'earning' THEN i.name ELSE sb.name END, ''),
 COALESCE(CASE WHEN t.type = 'spending' THEN st.name ELSE db.name END, '')`

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
	INSERT INTO transactions(
	 type, source_income_id, source_budget_id, destination_budget_id, destination_spending_type_id,
	 amount, source_currency, converted_amount, destination_currency, exchange_rate, date, comment)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		string(t.Type), nullInt(t.SourceIncomeID), nullInt(t.SourceBudgetID), nullInt(t.DestinationBudgetID),
		nullInt(t.DestinationSpendingTypeID), t.Amount, t.SourceCurrency, nullInt(t.ConvertedAmount),
		nullString(t.DestinationCurrency), nullFloat(t.ExchangeRate), t.Date, t.Comment).Scan(&id)
	return id, err
}

func (r *TransactionRepo) Update(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET
	 type = ?, source_income_id = ?, source_budget_id = ?, destination_budget_id = ?,
	 destination_spending_type_id = ?, amount = ?, source_currency = ?, converted_amount = ?,
	 destination_currency = ?, exchange_rate = ?, date = ?, comment = ?, updated_at = datetime('now')
	WHERE id = ?`,
		string(t.Type), nullInt(t.SourceIncomeID), nullInt(t.SourceBudgetID), nullInt(t.DestinationBudgetID),
		nullInt(t.DestinationSpendingTypeID), t.Amount, t.SourceCurrency, nullInt(t.ConvertedAmount),
		nullString(t.DestinationCurrency), nullFloat(t.ExchangeRate), t.Date, t.Comment, t.ID)
	return err
}

// Delete removes the transaction and its tag associations.
func (r *TransactionRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transaction_tags WHERE transaction_id = ?`, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	return err
}

// SetConversion rewrites the cross-currency fields; nil clears them.
func (r *TransactionRepo) SetConversion(ctx context.Context, id int64, converted *int64, currency *string, rate *float64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET converted_amount = ?, destination_currency = ?, exchange_rate = ?, updated_at = datetime('now')
	WHERE id = ?`, nullInt(converted), nullString(currency), nullFloat(rate), id)
	return err
}

func (r *TransactionRepo) Get(ctx context.Context, id int64) (*TransactionDetail, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+txCols+detailNames+` FROM transactions t`+detailJoins+` WHERE t.id = ?`, id)
	var d TransactionDetail
	t, err := scanTransaction(row, &d.SourceName, &d.DestinationName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.Transaction = t
	if d.Tags, err = NewTagRepo(r.db).ForTransaction(ctx, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]TransactionDetail, error) {
	where, args := f.where()
	query := "SELECT " + txCols + detailNames + " FROM transactions t" + detailJoins
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id DESC"
	switch {
	case f.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	case f.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransactionDetail
	for rows.Next() {
		var d TransactionDetail
		t, err := scanTransaction(rows, &d.SourceName, &d.DestinationName)
		if err != nil {
			return nil, err
		}
		d.Transaction = t
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	tags := NewTagRepo(r.db)
	for i := range out {
		if out[i].Tags, err = tags.ForTransaction(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f TransactionFilters) where() ([]string, []any) {
	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.From != "" {
		where = append(where, "t.date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "t.date <= ?")
		args = append(args, f.To)
	}
	if len(f.TagIDs) > 0 {
		where = append(where, "t.id IN (SELECT transaction_id FROM transaction_tags WHERE tag_id IN ("+placeholders(len(f.TagIDs))+"))")
		args = append(args, int64Args(f.TagIDs)...)
	}
	if len(f.CategoryIDs) > 0 {
		where = append(where, "t.destination_spending_type_id IN ("+placeholders(len(f.CategoryIDs))+")")
		args = append(args, int64Args(f.CategoryIDs)...)
	}
	if f.Kind.Valid() && f.EntityID != 0 {
		var ors []string
		for _, col := range f.Kind.Columns() {
			ors = append(ors, "t."+col+" = ?")
			args = append(args, f.EntityID)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	return where, args
}

// Range returns raw rows with dates in [from, to], oldest first. Empty bounds are open.
func (r *TransactionRepo) Range(ctx context.Context, from, to string) ([]Transaction, error) {
	where, args := TransactionFilters{From: from, To: to}.where()
	query := "SELECT " + txCols + " FROM transactions t"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return r.queryRaw(ctx, query+" ORDER BY t.date, t.id", args...)
}

// ByCategory returns every transaction whose destination is the category.
func (r *TransactionRepo) ByCategory(ctx context.Context, categoryID int64) ([]Transaction, error) {
	return r.queryRaw(ctx, "SELECT "+txCols+" FROM transactions t WHERE t.destination_spending_type_id = ? ORDER BY t.id", categoryID)
}

func (r *TransactionRepo) queryRaw(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TagLinks returns associations for transactions dated in [from, to].
func (r *TransactionRepo) TagLinks(ctx context.Context, from, to string) ([]TagLink, error) {
	where, args := TransactionFilters{From: from, To: to}.where()
	query := "SELECT tt.transaction_id, tt.tag_id FROM transaction_tags tt JOIN transactions t ON t.id = tt.transaction_id"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TagLink
	for rows.Next() {
		var l TagLink
		if err := rows.Scan(&l.TransactionID, &l.TagID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

// IDsReferencing returns transactions that use the entity in any role of its kind.
func (r *TransactionRepo) IDsReferencing(ctx context.Context, kind Kind, id int64) ([]int64, error) {
	where, args := TransactionFilters{Kind: kind, EntityID: id}.where()
	if len(where) == 0 {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	rows, err := r.db.QueryContext(ctx, "SELECT t.id FROM transactions t WHERE "+where[0]+" ORDER BY t.id", args...)
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

// Reassign rewrites every FK column of kind from one entity to another.
func (r *TransactionRepo) Reassign(ctx context.Context, kind Kind, from, to int64) error {
	for _, col := range kind.Columns() {
		if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET `+col+` = ?, updated_at = datetime('now') WHERE `+col+` = ?`, to, from); err != nil {
			return fmt.Errorf("reassign %s: %w", col, err)
		}
	}
	return nil
}

// TransfersBetween counts transfers in either direction between two budgets.
func (r *TransactionRepo) TransfersBetween(ctx context.Context, a, b int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM transactions
	WHERE type = 'transfer'
	  AND ((source_budget_id = ? AND destination_budget_id = ?) OR (source_budget_id = ? AND destination_budget_id = ?))`,
		a, b, b, a).Scan(&n)
	return n, err
}

// EarliestDate returns the oldest transaction date, or "" for an empty log.
func (r *TransactionRepo) EarliestDate(ctx context.Context) (string, error) {
	var d sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(date) FROM transactions`).Scan(&d); err != nil {
		return "", err
	}
	return d.String, nil
}

// scanTransaction handles nullable fields for both Row and Rows.
func scanTransaction(row scanner, extra ...any) (Transaction, error) {
	var t Transaction
	var typ, created, updated string
	var srcIncome, srcBudget, dstBudget, dstCategory, converted sql.NullInt64
	var dstCurrency sql.NullString
	var rate sql.NullFloat64
	dest := append([]any{&t.ID, &typ, &srcIncome, &srcBudget, &dstBudget, &dstCategory, &t.Amount,
		&t.SourceCurrency, &converted, &dstCurrency, &rate, &t.Date, &t.Comment, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Transaction{}, err
	}
	t.Type = TransactionType(typ)
	t.SourceIncomeID = intPtr(srcIncome)
	t.SourceBudgetID = intPtr(srcBudget)
	t.DestinationBudgetID = intPtr(dstBudget)
	t.DestinationSpendingTypeID = intPtr(dstCategory)
	t.ConvertedAmount = intPtr(converted)
	t.DestinationCurrency = stringPtr(dstCurrency)
	t.ExchangeRate = floatPtr(rate)
	t.CreatedAt = parseStamp(created)
	t.UpdatedAt = parseStamp(updated)
	return t, nil
}
