// Package testdata builds deterministic synthetic ledgers for tests and demos.
package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
)

// Options controls Seed. Zero values pick small defaults.
type Options struct {
	Seed   int64
	Start  time.Time // first month; defaults to January 2024
	Months int       // defaults to 3
}

// Ledger lists what Seed created, by name.
type Ledger struct {
	Incomes      map[string]int64
	Budgets      map[string]int64
	Categories   map[string]int64
	Tags         map[string]int64
	Transactions int
}

type entity struct {
	name     string
	currency string
	amount   int64
}

var (
	incomes    = []entity{{"Salary", "USD", 300000}, {"Freelance", "EUR", 50000}}
	budgets    = []entity{{"Cash", "USD", 50000}, {"Savings", "EUR", 100000}, {"Card", "USD", 0}}
	categories = []entity{{"Food", "USD", 0}, {"Rent", "USD", 0}, {"Travel", "EUR", 0}}
	tags       = []string{"groceries", "monthly", "trip"}
)

// Seed fills an empty store with a few months of mixed-currency activity.
// The same options always produce the same rows.
func Seed(ctx context.Context, h *database.Handle, opts Options) (Ledger, error) {
	if opts.Months <= 0 {
		opts.Months = 3
	}
	if opts.Start.IsZero() {
		opts.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	out := Ledger{
		Incomes:    map[string]int64{},
		Budgets:    map[string]int64{},
		Categories: map[string]int64{},
		Tags:       map[string]int64{},
	}

	err := h.Write(ctx, func(q repository.Querier) error {
		for i, e := range incomes {
			id, err := repository.NewIncomeRepo(q).Insert(ctx, repository.Income{
				Entity:         repository.Entity{Name: e.name, Currency: e.currency, SortOrder: i},
				ExpectedAmount: e.amount,
			})
			if err != nil {
				return fmt.Errorf("income %s: %w", e.name, err)
			}
			out.Incomes[e.name] = id
		}
		for i, e := range budgets {
			id, err := repository.NewBudgetRepo(q).Insert(ctx, repository.Budget{
				Entity:         repository.Entity{Name: e.name, Currency: e.currency, SortOrder: i},
				InitialBalance: e.amount,
			})
			if err != nil {
				return fmt.Errorf("budget %s: %w", e.name, err)
			}
			out.Budgets[e.name] = id
		}
		for i, e := range categories {
			id, err := repository.NewCategoryRepo(q).Insert(ctx, repository.Category{
				Entity: repository.Entity{Name: e.name, Currency: e.currency, SortOrder: i},
			})
			if err != nil {
				return fmt.Errorf("category %s: %w", e.name, err)
			}
			out.Categories[e.name] = id
		}
		tagRepo := repository.NewTagRepo(q)
		for _, name := range tags {
			id, err := tagRepo.Insert(ctx, name, "")
			if err != nil {
				return fmt.Errorf("tag %s: %w", name, err)
			}
			out.Tags[name] = id
		}

		rates := repository.NewRateRepo(q)
		first := repository.FormatDate(opts.Start)
		for _, x := range []repository.ExchangeRate{
			{Base: "USD", Target: "EUR", Rate: 0.9, Date: first},
			{Base: "EUR", Target: "USD", Rate: 1.1, Date: first},
		} {
			if err := rates.Upsert(ctx, x); err != nil {
				return err
			}
		}

		txs := repository.NewTransactionRepo(q)
		add := func(t repository.Transaction, tagNames ...string) error {
			id, err := txs.Insert(ctx, t)
			if err != nil {
				return err
			}
			for _, n := range tagNames {
				if err := tagRepo.Attach(ctx, id, out.Tags[n]); err != nil {
					return err
				}
			}
			out.Transactions++
			return nil
		}
		for m := 0; m < opts.Months; m++ {
			month := opts.Start.AddDate(0, m, 0)
			day := func(d int) string { return repository.FormatDate(month.AddDate(0, 0, d-1)) }

			if err := add(earning(out.Incomes["Salary"], out.Budgets["Cash"], 300000, "USD", day(1)), "monthly"); err != nil {
				return err
			}
			if err := add(earning(out.Incomes["Freelance"], out.Budgets["Savings"], int64(20000+rng.Intn(30000)), "EUR", day(10))); err != nil {
				return err
			}
			if err := add(spending(out.Budgets["Cash"], out.Categories["Rent"], 120000, "USD", day(2)), "monthly"); err != nil {
				return err
			}
			for i := 0; i < 4; i++ {
				t := spending(out.Budgets["Card"], out.Categories["Food"], int64(1500+rng.Intn(8000)), "USD", day(3+7*i))
				if err := add(t, "groceries"); err != nil {
					return err
				}
			}
			trip := int64(10000 + rng.Intn(20000))
			t := spending(out.Budgets["Cash"], out.Categories["Travel"], trip, "USD", day(15))
			cross(&t, "EUR", 0.9)
			if err := add(t, "trip"); err != nil {
				return err
			}
			move := transfer(out.Budgets["Cash"], out.Budgets["Savings"], 50000, "USD", day(20))
			cross(&move, "EUR", 0.9)
			if err := add(move); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func earning(income, budget, amount int64, cur, date string) repository.Transaction {
	return repository.Transaction{Type: repository.Earning, SourceIncomeID: &income, DestinationBudgetID: &budget,
		Amount: amount, SourceCurrency: cur, Date: date}
}

func spending(budget, category, amount int64, cur, date string) repository.Transaction {
	return repository.Transaction{Type: repository.Spending, SourceBudgetID: &budget, DestinationSpendingTypeID: &category,
		Amount: amount, SourceCurrency: cur, Date: date}
}

func transfer(from, to, amount int64, cur, date string) repository.Transaction {
	return repository.Transaction{Type: repository.Transfer, SourceBudgetID: &from, DestinationBudgetID: &to,
		Amount: amount, SourceCurrency: cur, Date: date}
}

func cross(t *repository.Transaction, dst string, rate float64) {
	converted := int64(float64(t.Amount)*rate + 0.5)
	t.ConvertedAmount = &converted
	t.DestinationCurrency = &dst
	t.ExchangeRate = &rate
}
