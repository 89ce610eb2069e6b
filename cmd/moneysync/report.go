package main

import (
	"context"
	"flag"
	"strconv"

	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/database/repository"
)

type balancesCmd struct {
	all bool
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "show budget balances" }
func (*balancesCmd) Usage() string {
	return `moneysync balances [-all]

  Balance = initial balance + earnings in + transfers in - transfers out - spending.
`
}
func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "include deactivated budgets")
}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		balances, err := e.ledger.Stats.Balances(ctx, c.all)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(balances))
		for _, b := range balances {
			rows = append(rows, []string{b.Name, b.Currency, money(b.InitialBalance, b.Currency), signed(b.Balance, b.Currency)})
		}
		printTable("Balances", []string{"Budget", "Currency", "Initial", "Balance"}, rows, 2, 3)
		return nil
	})
}

func reportGroup() subcommands.Command {
	return &groupCmd{
		name:     "report",
		synopsis: "aggregate reports in one currency",
		commands: []subcommands.Command{
			&summaryCmd{},
			&categoriesCmd{},
			&tagsReportCmd{},
			&monthlyCmd{},
			&dailyCmd{},
			&expensesCmd{},
			&trendCmd{},
			&currenciesCmd{},
		},
	}
}

// period holds the flags shared by ranged reports.
type period struct {
	from   string
	to     string
	target string
}

func (p *period) setFlags(f *flag.FlagSet) {
	f.StringVar(&p.from, "from", "", "first date, inclusive (YYYY-MM-DD)")
	f.StringVar(&p.to, "to", "", "last date, inclusive (YYYY-MM-DD)")
	f.StringVar(&p.target, "c", "", "report currency, the display currency by default")
}

type summaryCmd struct{ period }

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "income and expense totals" }
func (*summaryCmd) Usage() string {
	return "moneysync report summary [-from <date>] [-to <date>] [-c <currency>]\n"
}
func (c *summaryCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		s, err := e.ledger.Stats.Summary(ctx, c.from, c.to, c.target)
		if err != nil {
			return err
		}
		printTable("Summary", []string{"Income", "Expense", "Net", "Transactions"}, [][]string{{
			money(s.Income, s.Currency),
			money(s.Expense, s.Currency),
			signed(s.Income-s.Expense, s.Currency),
			strconv.Itoa(s.Count),
		}}, 0, 1, 2, 3)
		approxNote(s.Approximated)
		return nil
	})
}

type categoriesCmd struct{ period }

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "spending per category" }
func (*categoriesCmd) Usage() string {
	return "moneysync report categories [-from <date>] [-to <date>] [-c <currency>]\n"
}
func (c *categoriesCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		b, err := e.ledger.Stats.SpendingByCategory(ctx, c.from, c.to, c.target)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(b.Categories))
		for _, cat := range b.Categories {
			rows = append(rows, []string{cat.Name, money(cat.Total, b.Currency), strconv.Itoa(cat.Count)})
		}
		printTable("Spending by category", []string{"Category", "Total", "Count"}, rows, 1, 2)
		approxNote(b.Approximated)
		return nil
	})
}

type tagsReportCmd struct{ period }

func (*tagsReportCmd) Name() string     { return "tags" }
func (*tagsReportCmd) Synopsis() string { return "totals per tag" }
func (*tagsReportCmd) Usage() string {
	return "moneysync report tags [-from <date>] [-to <date>] [-c <currency>]\n"
}
func (c *tagsReportCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *tagsReportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		b, err := e.ledger.Stats.TagDistribution(ctx, c.from, c.to, c.target)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(b.Tags))
		for _, t := range b.Tags {
			rows = append(rows, []string{t.Name, money(t.Total, b.Currency), strconv.Itoa(t.Count)})
		}
		printTable("Tags", []string{"Tag", "Total", "Count"}, rows, 1, 2)
		approxNote(b.Approximated)
		return nil
	})
}

type monthlyCmd struct{ period }

func (*monthlyCmd) Name() string     { return "monthly" }
func (*monthlyCmd) Synopsis() string { return "earned and spent per month" }
func (*monthlyCmd) Usage() string {
	return "moneysync report monthly [-from <date>] [-to <date>] [-c <currency>]\n"
}
func (c *monthlyCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *monthlyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		m, err := e.ledger.Stats.MonthlyTotals(ctx, c.from, c.to, c.target)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(m.Months))
		for _, mt := range m.Months {
			rows = append(rows, []string{mt.Month, money(mt.Earned, m.Currency), money(mt.Spent, m.Currency), signed(mt.Earned-mt.Spent, m.Currency)})
		}
		printTable("Monthly", []string{"Month", "Earned", "Spent", "Net"}, rows, 1, 2, 3)
		approxNote(m.Approximated)
		return nil
	})
}

type dailyCmd struct{ period }

func (*dailyCmd) Name() string     { return "daily" }
func (*dailyCmd) Synopsis() string { return "spending per day" }
func (*dailyCmd) Usage() string {
	return "moneysync report daily [-from <date>] [-to <date>] [-c <currency>]\n"
}
func (c *dailyCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *dailyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		d, err := e.ledger.Stats.DailySpending(ctx, c.from, c.to, c.target)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(d.Days))
		for _, day := range d.Days {
			rows = append(rows, []string{day.Date, money(day.Spent, d.Currency)})
		}
		printTable("Daily spending", []string{"Date", "Spent"}, rows, 1)
		approxNote(d.Approximated)
		return nil
	})
}

type expensesCmd struct {
	period
	tags       string
	categories string
}

func (*expensesCmd) Name() string     { return "expenses" }
func (*expensesCmd) Synopsis() string { return "monthly spending filtered by tags and categories" }
func (*expensesCmd) Usage() string {
	return "moneysync report expenses [-tags <a,b>] [-categories <a,b>] [-from <date>] [-to <date>] [-c <currency>]\n"
}
func (c *expensesCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.tags, "tags", "", "only transactions with any of these tags")
	f.StringVar(&c.categories, "categories", "", "only these categories")
}

func (c *expensesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		tagIDs, err := resolveTags(ctx, e, c.tags)
		if err != nil {
			return err
		}
		var catIDs []int64
		for _, name := range splitList(c.categories) {
			cat, err := resolveEntity(ctx, e, repository.KindCategory, name)
			if err != nil {
				return err
			}
			catIDs = append(catIDs, cat.ID)
		}
		m, err := e.ledger.Stats.FilteredMonthlyExpenses(ctx, c.from, c.to, tagIDs, catIDs, c.target)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(m.Months))
		for _, ma := range m.Months {
			rows = append(rows, []string{ma.Month, money(ma.Amount, m.Currency)})
		}
		printTable("Expenses", []string{"Month", "Spent"}, rows, 1)
		approxNote(m.Approximated)
		return nil
	})
}

type trendCmd struct {
	start  string
	end    string
	target string
}

func (*trendCmd) Name() string     { return "trend" }
func (*trendCmd) Synopsis() string { return "total budget balance at the end of each month" }
func (*trendCmd) Usage() string {
	return `moneysync report trend [-start <YYYY-MM>] [-end <YYYY-MM>] [-c <currency>]

  Converts every month at the latest known rate, so converted totals can differ
  from reports that use the rate stored on each transaction.
`
}
func (c *trendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "start", "", "first month, eleven months before -end by default")
	f.StringVar(&c.end, "end", "", "last month, the current month by default")
	f.StringVar(&c.target, "c", "", "report currency, the display currency by default")
}

func (c *trendCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		tr, err := e.ledger.Stats.Trend(ctx, c.start, c.end, c.target)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(tr.Points))
		for _, p := range tr.Points {
			rows = append(rows, []string{p.Month, signed(p.Balance, tr.Currency)})
		}
		printTable("Balance trend", []string{"Month", "Balance"}, rows, 1)
		approxNote(tr.Approximated)
		return nil
	})
}

type currenciesCmd struct{}

func (*currenciesCmd) Name() string           { return "currencies" }
func (*currenciesCmd) Synopsis() string       { return "active budget balances per currency" }
func (*currenciesCmd) Usage() string          { return "moneysync report currencies\n" }
func (*currenciesCmd) SetFlags(*flag.FlagSet) {}

func (*currenciesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		holdings, err := e.ledger.Stats.CurrencyHoldings(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(holdings))
		for _, h := range holdings {
			rows = append(rows, []string{h.Currency, signed(h.Balance, h.Currency), strconv.Itoa(h.Budgets)})
		}
		printTable("Holdings", []string{"Currency", "Balance", "Budgets"}, rows, 1, 2)
		return nil
	})
}
