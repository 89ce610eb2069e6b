package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/database/repository"
	"github.com/jask/moneysync/internal/service"
)

func entityGroup(kind repository.Kind) subcommands.Command {
	cmds := []subcommands.Command{
		&entityAddCmd{kind: kind},
		&entityListCmd{kind: kind},
		&entityUpdateCmd{kind: kind},
		&entityActiveCmd{kind: kind, active: false},
		&entityActiveCmd{kind: kind, active: true},
		&entityReorderCmd{kind: kind},
		&entityMergeCmd{kind: kind},
	}
	if kind == repository.KindCategory {
		cmds = append(cmds, &categoryCurrencyCmd{})
	}
	return &groupCmd{
		name:     string(kind),
		synopsis: "manage " + plural(kind),
		commands: cmds,
	}
}

func plural(kind repository.Kind) string {
	switch kind {
	case repository.KindCategory:
		return "spending categories"
	default:
		return string(kind) + "s"
	}
}

// amountLabel names EntityInput.Amount for kind, or "" when unused.
func amountLabel(kind repository.Kind) string {
	switch kind {
	case repository.KindIncome:
		return "expected monthly amount"
	case repository.KindBudget:
		return "initial balance"
	}
	return ""
}

// resolveEntity accepts a name or #id.
func resolveEntity(ctx context.Context, e *env, kind repository.Kind, ref string) (repository.Entity, error) {
	if strings.HasPrefix(ref, "#") {
		id, err := strconv.ParseInt(ref[1:], 10, 64)
		if err != nil {
			return repository.Entity{}, usageErr("invalid id %q", ref)
		}
		return e.ledger.Entities.Get(ctx, kind, id)
	}
	return e.ledger.Entities.Resolve(ctx, kind, ref)
}

type entityAddCmd struct {
	kind     repository.Kind
	currency string
	icon     string
	color    string
	amount   string
}

func (*entityAddCmd) Name() string       { return "add" }
func (c *entityAddCmd) Synopsis() string { return "add a " + string(c.kind) }
func (c *entityAddCmd) Usage() string {
	return fmt.Sprintf("moneysync %s add -c <currency> [-amount <n>] <name>\n", c.kind)
}
func (c *entityAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "ISO currency code")
	f.StringVar(&c.icon, "icon", "", "icon name")
	f.StringVar(&c.color, "color", "", "hex color")
	if label := amountLabel(c.kind); label != "" {
		f.StringVar(&c.amount, "amount", "0", label)
	}
}

func (c *entityAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		in := service.EntityInput{Name: f.Arg(0), Currency: c.currency, Icon: c.icon, Color: c.color}
		if c.amount != "" {
			amount, err := parseAmount(c.amount)
			if err != nil {
				return err
			}
			in.Amount = amount
		}
		id, err := e.ledger.Entities.Add(ctx, c.kind, in)
		if err != nil {
			return err
		}
		printf("added %s #%d\n", c.kind, id)
		return nil
	})
}

type entityListCmd struct {
	kind repository.Kind
	all  bool
}

func (*entityListCmd) Name() string       { return "list" }
func (c *entityListCmd) Synopsis() string { return "list " + plural(c.kind) }
func (c *entityListCmd) Usage() string {
	return fmt.Sprintf("moneysync %s list [-all]\n", c.kind)
}
func (c *entityListCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "include deactivated entries")
}

func (c *entityListCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		headers := []string{"#", "Name", "Currency", "Active"}
		var rows [][]string
		row := func(en repository.Entity, extra ...string) []string {
			active := "yes"
			if !en.IsActive {
				active = mutedStyle.Render("no")
			}
			return append([]string{strconv.FormatInt(en.ID, 10), en.Name, en.Currency, active}, extra...)
		}
		switch c.kind {
		case repository.KindIncome:
			incomes, err := e.ledger.Entities.Incomes(ctx, c.all)
			if err != nil {
				return err
			}
			earned, err := e.ledger.Stats.MonthlyEarned(ctx)
			if err != nil {
				return err
			}
			headers = append(headers, "Expected", "This month")
			for _, in := range incomes {
				rows = append(rows, row(in.Entity, money(in.ExpectedAmount, in.Currency), money(earned[in.ID], in.Currency)))
			}
			printTable("Incomes", headers, rows, 4, 5)
		case repository.KindBudget:
			budgets, err := e.ledger.Entities.Budgets(ctx, c.all)
			if err != nil {
				return err
			}
			headers = append(headers, "Initial")
			for _, b := range budgets {
				rows = append(rows, row(b.Entity, money(b.InitialBalance, b.Currency)))
			}
			printTable("Budgets", headers, rows, 4)
		default:
			cats, err := e.ledger.Entities.List(ctx, c.kind, c.all)
			if err != nil {
				return err
			}
			spent, err := e.ledger.Stats.MonthlySpent(ctx)
			if err != nil {
				return err
			}
			headers = append(headers, "This month")
			for _, cat := range cats {
				rows = append(rows, row(cat, money(spent[cat.ID], cat.Currency)))
			}
			printTable("Spending categories", headers, rows, 4)
		}
		return nil
	})
}

type entityUpdateCmd struct {
	kind     repository.Kind
	name     string
	currency string
	icon     string
	color    string
	amount   string
}

func (*entityUpdateCmd) Name() string       { return "update" }
func (c *entityUpdateCmd) Synopsis() string { return "change a " + string(c.kind) }
func (c *entityUpdateCmd) Usage() string {
	return fmt.Sprintf("moneysync %s update [-name <n>] [-c <currency>] [-icon <i>] [-color <c>] <name|#id>\n", c.kind)
}
func (c *entityUpdateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "new name")
	f.StringVar(&c.currency, "c", "", "new currency")
	f.StringVar(&c.icon, "icon", "", "new icon")
	f.StringVar(&c.color, "color", "", "new color")
	if label := amountLabel(c.kind); label != "" {
		f.StringVar(&c.amount, "amount", "", "new "+label)
	}
}

func (c *entityUpdateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		en, err := resolveEntity(ctx, e, c.kind, f.Arg(0))
		if err != nil {
			return err
		}
		var p service.EntityPatch
		set := func(dst **string, v string) {
			if v != "" {
				*dst = &v
			}
		}
		set(&p.Name, c.name)
		set(&p.Currency, c.currency)
		set(&p.Icon, c.icon)
		set(&p.Color, c.color)
		if c.amount != "" {
			amount, err := parseAmount(c.amount)
			if err != nil {
				return err
			}
			p.Amount = &amount
		}
		if err := e.ledger.Entities.Update(ctx, c.kind, en.ID, p); err != nil {
			return err
		}
		printf("updated %s #%d\n", c.kind, en.ID)
		return nil
	})
}

// entityActiveCmd is deactivate or reactivate.
type entityActiveCmd struct {
	kind   repository.Kind
	active bool
}

func (c *entityActiveCmd) Name() string {
	if c.active {
		return "reactivate"
	}
	return "deactivate"
}
func (c *entityActiveCmd) Synopsis() string {
	if c.active {
		return "restore a deactivated " + string(c.kind)
	}
	return "hide a " + string(c.kind) + " but keep its history"
}
func (c *entityActiveCmd) Usage() string {
	return fmt.Sprintf("moneysync %s %s <name|#id>\n", c.kind, c.Name())
}
func (*entityActiveCmd) SetFlags(*flag.FlagSet) {}

func (c *entityActiveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		en, err := resolveEntity(ctx, e, c.kind, f.Arg(0))
		if err != nil {
			return err
		}
		if c.active {
			err = e.ledger.Entities.Reactivate(ctx, c.kind, en.ID)
		} else {
			err = e.ledger.Entities.Deactivate(ctx, c.kind, en.ID)
		}
		if err != nil {
			return err
		}
		printf("%sd %s %q\n", c.Name(), c.kind, en.Name)
		return nil
	})
}

type entityReorderCmd struct {
	kind repository.Kind
}

func (*entityReorderCmd) Name() string       { return "reorder" }
func (c *entityReorderCmd) Synopsis() string { return "set the display order of " + plural(c.kind) }
func (c *entityReorderCmd) Usage() string {
	return fmt.Sprintf("moneysync %s reorder <name|#id>...\n\n  Lists every active %s in the new order.\n", c.kind, c.kind)
}
func (*entityReorderCmd) SetFlags(*flag.FlagSet) {}

func (c *entityReorderCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		ids := make([]int64, 0, f.NArg())
		for _, ref := range f.Args() {
			en, err := resolveEntity(ctx, e, c.kind, ref)
			if err != nil {
				return err
			}
			ids = append(ids, en.ID)
		}
		return e.ledger.Entities.Reorder(ctx, c.kind, ids)
	})
}

type entityMergeCmd struct {
	kind repository.Kind
}

func (*entityMergeCmd) Name() string       { return "merge" }
func (c *entityMergeCmd) Synopsis() string { return "fold one " + string(c.kind) + " into another" }
func (c *entityMergeCmd) Usage() string {
	return fmt.Sprintf(`moneysync %s merge <source> <target>

  Moves every transaction of source to target, tags them with the source name
  and deactivates source. Both must share a currency.
`, c.kind)
}
func (*entityMergeCmd) SetFlags(*flag.FlagSet) {}

func (c *entityMergeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		src, err := resolveEntity(ctx, e, c.kind, f.Arg(0))
		if err != nil {
			return err
		}
		dst, err := resolveEntity(ctx, e, c.kind, f.Arg(1))
		if err != nil {
			return err
		}
		res, err := e.ledger.Entities.Merge(ctx, c.kind, src.ID, dst.ID)
		if err != nil {
			return err
		}
		printf("merged %q into %q: %d transaction(s) moved and tagged\n", src.Name, dst.Name, res.Transactions)
		return nil
	})
}

type categoryCurrencyCmd struct{}

func (*categoryCurrencyCmd) Name() string     { return "currency" }
func (*categoryCurrencyCmd) Synopsis() string { return "change a category currency and rewrite its history" }
func (*categoryCurrencyCmd) Usage() string {
	return `moneysync category currency <name|#id> <currency>

  Re-derives the converted amount of every transaction into the category at the
  latest known rate.
`
}
func (*categoryCurrencyCmd) SetFlags(*flag.FlagSet) {}

func (*categoryCurrencyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		cat, err := resolveEntity(ctx, e, repository.KindCategory, f.Arg(0))
		if err != nil {
			return err
		}
		res, err := e.ledger.Entities.ChangeCategoryCurrency(ctx, cat.ID, f.Arg(1))
		if err != nil {
			return err
		}
		printf("%q now in %s; %d transaction(s) rewritten\n", cat.Name, strings.ToUpper(f.Arg(1)), res.Transactions)
		approxNote(res.Approximated)
		return nil
	})
}
