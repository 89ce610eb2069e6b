package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/currency"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// EntityService manages incomes, budgets and spending categories.
type EntityService struct {
	Store *database.Handle
	Log   *zap.Logger
}

// EntityInput describes a new entity. Amount is the expected amount for an
// income and the initial balance for a budget; categories ignore it.
type EntityInput struct {
	Name     string
	Currency string
	Icon     string
	Color    string
	Amount   int64
}

// EntityPatch is a partial update; nil fields are left alone.
type EntityPatch struct {
	Name     *string
	Currency *string
	Icon     *string
	Color    *string
	Amount   *int64
}

// MergeResult reports what a merge touched.
type MergeResult struct {
	TagID        int64
	Transactions int
}

// CurrencyChange reports how many transactions a category currency change rewrote.
type CurrencyChange struct {
	Transactions int
	Approximated int
}

func checkKind(kind repository.Kind) error {
	if !kind.Valid() {
		return invalid("kind", "unknown entity kind %q", kind)
	}
	return nil
}

// Add creates an entity at the end of the active list and returns its id.
func (s *EntityService) Add(ctx context.Context, kind repository.Kind, in EntityInput) (int64, error) {
	if err := checkKind(kind); err != nil {
		return 0, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, invalid("name", "name is required")
	}
	code, err := validCurrency("currency", in.Currency)
	if err != nil {
		return 0, err
	}
	if kind == repository.KindIncome && in.Amount < 0 {
		return 0, invalid("expected_amount", "must not be negative")
	}
	e := repository.Entity{
		Kind:     kind,
		Name:     name,
		Currency: code,
		Icon:     in.Icon,
		Color:    in.Color,
	}
	if e.Icon == "" {
		e.Icon = kind.DefaultIcon()
	}
	if e.Color == "" {
		e.Color = kind.DefaultColor()
	}

	var id int64
	err = s.Store.Write(ctx, func(q repository.Querier) error {
		if err := inCatalog(ctx, q, "currency", code); err != nil {
			return err
		}
		ents := repository.NewEntityRepo(q)
		taken, err := ents.NameTaken(ctx, kind, name, 0)
		if err != nil {
			return err
		}
		if taken {
			return invalid("name", "an active %s named %q already exists", kind, name)
		}
		if e.SortOrder, err = ents.NextSortOrder(ctx, kind); err != nil {
			return err
		}
		switch kind {
		case repository.KindIncome:
			id, err = repository.NewIncomeRepo(q).Insert(ctx, repository.Income{Entity: e, ExpectedAmount: in.Amount})
		case repository.KindBudget:
			id, err = repository.NewBudgetRepo(q).Insert(ctx, repository.Budget{Entity: e, InitialBalance: in.Amount})
		default:
			id, err = repository.NewCategoryRepo(q).Insert(ctx, repository.Category{Entity: e})
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add %s: %w", kind, err)
	}
	return id, nil
}

// Get returns one entity of kind.
func (s *EntityService) Get(ctx context.Context, kind repository.Kind, id int64) (repository.Entity, error) {
	if err := checkKind(kind); err != nil {
		return repository.Entity{}, err
	}
	var out repository.Entity
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		e, err := repository.NewEntityRepo(q).Get(ctx, kind, id)
		if err != nil {
			return err
		}
		if e == nil {
			return notFoundID(string(kind), id)
		}
		out = *e
		return nil
	})
	return out, err
}

// List returns entities of kind in display order.
func (s *EntityService) List(ctx context.Context, kind repository.Kind, includeInactive bool) ([]repository.Entity, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	var out []repository.Entity
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewEntityRepo(q).List(ctx, kind, includeInactive)
		return err
	})
	return out, err
}

func (s *EntityService) Incomes(ctx context.Context, includeInactive bool) ([]repository.Income, error) {
	var out []repository.Income
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewIncomeRepo(q).List(ctx, includeInactive)
		return err
	})
	return out, err
}

func (s *EntityService) Budgets(ctx context.Context, includeInactive bool) ([]repository.Budget, error) {
	var out []repository.Budget
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		var err error
		out, err = repository.NewBudgetRepo(q).List(ctx, includeInactive)
		return err
	})
	return out, err
}

// Resolve finds an entity by name, case-insensitively. A miss carries the
// closest names as suggestions.
func (s *EntityService) Resolve(ctx context.Context, kind repository.Kind, name string) (repository.Entity, error) {
	if err := checkKind(kind); err != nil {
		return repository.Entity{}, err
	}
	var out repository.Entity
	err := s.Store.Read(ctx, func(q repository.Querier) error {
		ents := repository.NewEntityRepo(q)
		e, err := ents.FindByName(ctx, kind, strings.TrimSpace(name))
		if err != nil {
			return err
		}
		if e == nil {
			names, err := ents.Names(ctx, kind)
			if err != nil {
				return err
			}
			return notFoundName(string(kind), name, names)
		}
		out = *e
		return nil
	})
	return out, err
}

// Update applies a partial patch. A category currency change rewrites the
// conversion fields of its transactions; income and budget currencies can
// only change while nothing references them.
func (s *EntityService) Update(ctx context.Context, kind repository.Kind, id int64, p EntityPatch) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	var code string
	if p.Currency != nil {
		var err error
		if code, err = validCurrency("currency", *p.Currency); err != nil {
			return err
		}
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name", "name is required")
	}
	if p.Amount != nil && kind == repository.KindIncome && *p.Amount < 0 {
		return invalid("expected_amount", "must not be negative")
	}

	err := s.Store.Write(ctx, func(q repository.Querier) error {
		if p.Currency != nil {
			if err := inCatalog(ctx, q, "currency", code); err != nil {
				return err
			}
		}
		ents := repository.NewEntityRepo(q)
		cur, err := ents.Get(ctx, kind, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return notFoundID(string(kind), id)
		}
		e := *cur
		if p.Name != nil {
			e.Name = strings.TrimSpace(*p.Name)
			if e.IsActive {
				taken, err := ents.NameTaken(ctx, kind, e.Name, id)
				if err != nil {
					return err
				}
				if taken {
					return invalid("name", "an active %s named %q already exists", kind, e.Name)
				}
			}
		}
		if p.Icon != nil {
			e.Icon = *p.Icon
		}
		if p.Color != nil {
			e.Color = *p.Color
		}
		if code != "" && code != e.Currency {
			if kind == repository.KindCategory {
				if _, err := changeCategoryCurrency(ctx, q, id, code); err != nil {
					return err
				}
			} else {
				refs, err := repository.NewTransactionRepo(q).IDsReferencing(ctx, kind, id)
				if err != nil {
					return err
				}
				if len(refs) > 0 {
					return invalid("currency", "%d transactions reference this %s", len(refs), kind)
				}
			}
			e.Currency = code
		}

		switch kind {
		case repository.KindIncome:
			in, err := repository.NewIncomeRepo(q).Get(ctx, id)
			if err != nil {
				return err
			}
			in.Entity = e
			if p.Amount != nil {
				in.ExpectedAmount = *p.Amount
			}
			return repository.NewIncomeRepo(q).Update(ctx, *in)
		case repository.KindBudget:
			b, err := repository.NewBudgetRepo(q).Get(ctx, id)
			if err != nil {
				return err
			}
			b.Entity = e
			if p.Amount != nil {
				b.InitialBalance = *p.Amount
			}
			return repository.NewBudgetRepo(q).Update(ctx, *b)
		default:
			return repository.NewCategoryRepo(q).Update(ctx, repository.Category{Entity: e})
		}
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	return nil
}

// ChangeCategoryCurrency moves a spending category to code. Transactions now
// in the category's currency drop their conversion; the rest are converted at
// the latest known rate.
func (s *EntityService) ChangeCategoryCurrency(ctx context.Context, id int64, code string) (CurrencyChange, error) {
	c, err := validCurrency("currency", code)
	if err != nil {
		return CurrencyChange{}, err
	}
	var res CurrencyChange
	err = s.Store.Write(ctx, func(q repository.Querier) error {
		if err := inCatalog(ctx, q, "currency", c); err != nil {
			return err
		}
		e, err := repository.NewEntityRepo(q).Get(ctx, repository.KindCategory, id)
		if err != nil {
			return err
		}
		if e == nil {
			return notFoundID(string(repository.KindCategory), id)
		}
		res, err = changeCategoryCurrency(ctx, q, id, c)
		return err
	})
	if err != nil {
		return CurrencyChange{}, fmt.Errorf("change category currency: %w", err)
	}
	logger(s.Log).Info("category currency changed", zap.Int64("category", id), zap.String("currency", c),
		zap.Int("transactions", res.Transactions), zap.Int("approximated", res.Approximated))
	return res, nil
}

func changeCategoryCurrency(ctx context.Context, q repository.Querier, id int64, code string) (CurrencyChange, error) {
	all, err := repository.NewRateRepo(q).All(ctx)
	if err != nil {
		return CurrencyChange{}, err
	}
	book := currency.NewRateBook(all)
	txs := repository.NewTransactionRepo(q)
	list, err := txs.ByCategory(ctx, id)
	if err != nil {
		return CurrencyChange{}, err
	}
	var res CurrencyChange
	for _, t := range list {
		if t.SourceCurrency == code {
			if err := txs.SetConversion(ctx, t.ID, nil, nil, nil); err != nil {
				return CurrencyChange{}, err
			}
			res.Transactions++
			continue
		}
		rate, how := book.LatestRate(t.SourceCurrency, code)
		if how == currency.ResolvedIdentity {
			res.Approximated++
		}
		converted := currency.Apply(t.Amount, rate)
		f := currency.Float(rate)
		dst := code
		if err := txs.SetConversion(ctx, t.ID, &converted, &dst, &f); err != nil {
			return CurrencyChange{}, err
		}
		res.Transactions++
	}
	if err := repository.NewEntityRepo(q).SetCurrency(ctx, repository.KindCategory, id, code); err != nil {
		return CurrencyChange{}, err
	}
	return res, nil
}

// Deactivate soft-deletes an entity. Its transactions keep referencing it.
func (s *EntityService) Deactivate(ctx context.Context, kind repository.Kind, id int64) error {
	return s.setActive(ctx, kind, id, false)
}

// Reactivate restores a soft-deleted entity at the end of the active list,
// provided no active sibling took its name meanwhile.
func (s *EntityService) Reactivate(ctx context.Context, kind repository.Kind, id int64) error {
	return s.setActive(ctx, kind, id, true)
}

func (s *EntityService) setActive(ctx context.Context, kind repository.Kind, id int64, active bool) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	return s.Store.Write(ctx, func(q repository.Querier) error {
		ents := repository.NewEntityRepo(q)
		e, err := ents.Get(ctx, kind, id)
		if err != nil {
			return err
		}
		if e == nil {
			return notFoundID(string(kind), id)
		}
		if e.IsActive == active {
			return nil
		}
		if active {
			taken, err := ents.NameTaken(ctx, kind, e.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return invalid("name", "an active %s named %q already exists", kind, e.Name)
			}
			order, err := ents.NextSortOrder(ctx, kind)
			if err != nil {
				return err
			}
			if err := ents.SetSortOrder(ctx, kind, id, order); err != nil {
				return err
			}
		}
		return ents.SetActive(ctx, kind, id, active)
	})
}

// Reorder assigns positions 0..N-1 following ids, which must list every
// active entity of kind exactly once.
func (s *EntityService) Reorder(ctx context.Context, kind repository.Kind, ids []int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	return s.Store.Write(ctx, func(q repository.Querier) error {
		ents := repository.NewEntityRepo(q)
		active, err := ents.ActiveIDs(ctx, kind)
		if err != nil {
			return err
		}
		if len(active) != len(ids) {
			return invalid("order", "expected %d active ids, got %d", len(active), len(ids))
		}
		want := make(map[int64]bool, len(active))
		for _, id := range active {
			want[id] = true
		}
		for _, id := range ids {
			if !want[id] {
				return invalid("order", "id %d is not an active %s or is repeated", id, kind)
			}
			delete(want, id)
		}
		for i, id := range ids {
			if err := ents.SetSortOrder(ctx, kind, id, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Merge folds source into target: every transaction that references source is
// tagged with source's name, repointed to target, and source is deactivated.
func (s *EntityService) Merge(ctx context.Context, kind repository.Kind, sourceID, targetID int64) (MergeResult, error) {
	if err := checkKind(kind); err != nil {
		return MergeResult{}, err
	}
	if sourceID == targetID {
		return MergeResult{}, invalid("target", "cannot merge a %s into itself", kind)
	}
	var res MergeResult
	err := s.Store.Write(ctx, func(q repository.Querier) error {
		ents := repository.NewEntityRepo(q)
		src, err := ents.Get(ctx, kind, sourceID)
		if err != nil {
			return err
		}
		if src == nil {
			return notFoundID(string(kind), sourceID)
		}
		dst, err := ents.Get(ctx, kind, targetID)
		if err != nil {
			return err
		}
		if dst == nil {
			return notFoundID(string(kind), targetID)
		}
		if !src.IsActive {
			return invalid("source", "%s %q is inactive", kind, src.Name)
		}
		if !dst.IsActive {
			return invalid("target", "%s %q is inactive", kind, dst.Name)
		}
		if src.Currency != dst.Currency {
			return invalid("target", "currency %s does not match %s", dst.Currency, src.Currency)
		}
		txs := repository.NewTransactionRepo(q)
		if kind == repository.KindBudget {
			n, err := txs.TransfersBetween(ctx, sourceID, targetID)
			if err != nil {
				return err
			}
			if n > 0 {
				return invalid("target", "%d transfers between %q and %q would become self-transfers", n, src.Name, dst.Name)
			}
		}

		tags := repository.NewTagRepo(q)
		if res.TagID, err = tags.Ensure(ctx, src.Name, repository.MergeTagColor); err != nil {
			return err
		}
		ids, err := txs.IDsReferencing(ctx, kind, sourceID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := tags.Attach(ctx, id, res.TagID); err != nil {
				return err
			}
		}
		res.Transactions = len(ids)
		if err := txs.Reassign(ctx, kind, sourceID, targetID); err != nil {
			return err
		}
		return ents.SetActive(ctx, kind, sourceID, false)
	})
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge %s: %w", kind, err)
	}
	logger(s.Log).Info("merged entities", zap.String("kind", string(kind)),
		zap.Int64("source", sourceID), zap.Int64("target", targetID), zap.Int("transactions", res.Transactions))
	return res, nil
}
