package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// TransactionService records and queries the transaction log.
type TransactionService struct {
	Store *database.Handle
	Now   func() time.Time
}

// TransactionInput describes a transaction to create or replace. Source and
// destination ids are read according to Type. When the endpoints differ in
// currency, ConvertedAmount and/or ExchangeRate may be supplied; missing
// values are derived from the latest known rate.
type TransactionInput struct {
	Type            repository.TransactionType
	SourceID        int64
	DestinationID   int64
	Amount          int64
	Date            string // YYYY-MM-DD, today when empty
	Comment         string
	ConvertedAmount *int64
	ExchangeRate    *float64
	TagIDs          []int64
}

type endpoint struct {
	field string
	kind  repository.Kind
	id    int64
}

func endpoints(in TransactionInput) (src, dst endpoint, err error) {
	switch in.Type {
	case repository.Earning:
		return endpoint{"source", repository.KindIncome, in.SourceID},
			endpoint{"destination", repository.KindBudget, in.DestinationID}, nil
	case repository.Spending:
		return endpoint{"source", repository.KindBudget, in.SourceID},
			endpoint{"destination", repository.KindCategory, in.DestinationID}, nil
	case repository.Transfer:
		switch {
		case in.SourceID == 0:
			return src, dst, invalid("source", "%s is required", repository.KindBudget)
		case in.DestinationID == 0:
			return src, dst, invalid("destination", "%s is required", repository.KindBudget)
		case in.SourceID == in.DestinationID:
			return src, dst, invalid("destination", "a transfer needs two different budgets")
		}
		return endpoint{"source", repository.KindBudget, in.SourceID},
			endpoint{"destination", repository.KindBudget, in.DestinationID}, nil
	}
	return src, dst, invalid("type", "unknown transaction type %q", in.Type)
}

// build validates in against the current tables. prev, when set, is the row
// being replaced: its endpoints may stay even if they were deactivated since.
func (s *TransactionService) build(ctx context.Context, q repository.Querier, in TransactionInput, prev *repository.Transaction) (repository.Transaction, error) {
	src, dst, err := endpoints(in)
	if err != nil {
		return repository.Transaction{}, err
	}
	if in.Amount <= 0 {
		return repository.Transaction{}, invalid("amount", "must be positive")
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = repository.FormatDate(nowFunc(s.Now)())
	} else if err := validDate("date", date); err != nil {
		return repository.Transaction{}, err
	}

	ents := repository.NewEntityRepo(q)
	resolve := func(ep endpoint, kept int64) (*repository.Entity, error) {
		if ep.id == 0 {
			return nil, invalid(ep.field, "%s is required", ep.kind)
		}
		e, err := ents.Get(ctx, ep.kind, ep.id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, invalid(ep.field, "%s #%d does not exist", ep.kind, ep.id)
		}
		if !e.IsActive && ep.id != kept {
			return nil, invalid(ep.field, "%s %q is inactive", ep.kind, e.Name)
		}
		return e, nil
	}
	var keptSrc, keptDst int64
	if prev != nil && prev.Type == in.Type {
		keptSrc, keptDst = prev.SourceID(), prev.DestinationID()
	}
	se, err := resolve(src, keptSrc)
	if err != nil {
		return repository.Transaction{}, err
	}
	de, err := resolve(dst, keptDst)
	if err != nil {
		return repository.Transaction{}, err
	}

	t := repository.Transaction{
		Type:           in.Type,
		Amount:         in.Amount,
		SourceCurrency: se.Currency,
		Date:           date,
		Comment:        strings.TrimSpace(in.Comment),
	}
	switch in.Type {
	case repository.Earning:
		t.SourceIncomeID, t.DestinationBudgetID = &se.ID, &de.ID
	case repository.Spending:
		t.SourceBudgetID, t.DestinationSpendingTypeID = &se.ID, &de.ID
	case repository.Transfer:
		t.SourceBudgetID, t.DestinationBudgetID = &se.ID, &de.ID
	}

	if se.Currency == de.Currency {
		if in.ConvertedAmount != nil || in.ExchangeRate != nil {
			return repository.Transaction{}, invalid("converted_amount", "both endpoints use %s", se.Currency)
		}
	} else if err := s.convert(ctx, q, &t, de.Currency, in); err != nil {
		return repository.Transaction{}, err
	}

	if ids := unique(in.TagIDs); len(ids) > 0 {
		n, err := repository.NewTagRepo(q).CountExisting(ctx, ids)
		if err != nil {
			return repository.Transaction{}, err
		}
		if n != len(ids) {
			return repository.Transaction{}, invalid("tags", "%d of %d tags do not exist", len(ids)-n, len(ids))
		}
	}
	return t, nil
}

func (s *TransactionService) convert(ctx context.Context, q repository.Querier, t *repository.Transaction, target string, in TransactionInput) error {
	var converted int64
	var rate decimal.Decimal
	switch {
	case in.ConvertedAmount != nil:
		if *in.ConvertedAmount <= 0 {
			return invalid("converted_amount", "must be positive")
		}
		converted = *in.ConvertedAmount
		if in.ExchangeRate != nil {
			if *in.ExchangeRate <= 0 {
				return invalid("exchange_rate", "must be positive")
			}
			rate = decimal.NewFromFloat(*in.ExchangeRate)
		} else {
			rate = decimal.NewFromInt(converted).Div(decimal.NewFromInt(t.Amount))
		}
	case in.ExchangeRate != nil:
		if *in.ExchangeRate <= 0 {
			return invalid("exchange_rate", "must be positive")
		}
		rate = decimal.NewFromFloat(*in.ExchangeRate)
		converted = currency.Apply(t.Amount, rate)
	default:
		all, err := repository.NewRateRepo(q).All(ctx)
		if err != nil {
			return err
		}
		rate, _ = currency.NewRateBook(all).LatestRate(t.SourceCurrency, target)
		converted = currency.Apply(t.Amount, rate)
	}
	f := currency.Float(rate)
	t.ConvertedAmount = &converted
	t.DestinationCurrency = &target
	t.ExchangeRate = &f
	return nil
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Create validates and stores a transaction with its tags.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (int64, error) {
	var id int64
	err := s.Store.Write(ctx, func(q repository.Querier) error {
		t, err := s.build(ctx, q, in, nil)
		if err != nil {
			return err
		}
		if id, err = repository.NewTransactionRepo(q).Insert(ctx, t); err != nil {
			return err
		}
		return repository.NewTagRepo(q).Replace(ctx, id, unique(in.TagIDs))
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

// Update replaces a transaction and its tags.
func (s *TransactionService) Update(ctx context.Context, id int64, in TransactionInput) error {
	err := s.Store.Write(ctx, func(q repository.Querier) error {
		txs := repository.NewTransactionRepo(q)
		prev, err := txs.Get(ctx, id)
		if err != nil {
			return err
		}
		if prev == nil {
			return notFoundID("transaction", id)
		}
		t, err := s.build(ctx, q, in, &prev.Transaction)
		if err != nil {
			return err
		}
		t.ID = id
		if err := txs.Update(ctx, t); err != nil {
			return err
		}
		return repository.NewTagRepo(q).Replace(ctx, id, unique(in.TagIDs))
	})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// Delete removes a transaction and its tag associations.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	err := s.Store.Write(ctx, func(q repository.Querier) error {
		txs := repository.NewTransactionRepo(q)
		t, err := txs.Get(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return notFoundID("transaction", id)
		}
		return txs.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (repository.TransactionDetail, error) {
	var out repository.TransactionDetail
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		d, err := repository.NewTransactionRepo(q).Get(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return notFoundID("transaction", id)
		}
		out = *d
		return nil
	})
	return out, err
}

// List returns transactions newest first with endpoint names and tags.
func (s *TransactionService) List(ctx context.Context, f repository.TransactionFilters) ([]repository.TransactionDetail, error) {
	for field, d := range map[string]string{"from": f.From, "to": f.To} {
		if d == "" {
			continue
		}
		if err := validDate(field, d); err != nil {
			return nil, err
		}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, invalid("limit", "limit and offset must not be negative")
	}
	var out []repository.TransactionDetail
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewTransactionRepo(q).List(ctx, f)
		return err
	})
	return out, err
}

// ForEntity lists transactions that touch an entity in any role.
func (s *TransactionService) ForEntity(ctx context.Context, kind repository.Kind, id int64, limit int) ([]repository.TransactionDetail, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	return s.List(ctx, repository.TransactionFilters{Kind: kind, EntityID: id, Limit: limit})
}

func (s *TransactionService) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		n, err = repository.NewTransactionRepo(q).Count(ctx)
		return err
	})
	return n, err
}
