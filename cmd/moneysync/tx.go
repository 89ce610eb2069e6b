package main

import (
	"context"
	"flag"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/database/repository"
	"github.com/jask/moneysync/internal/service"
)

func txGroup() subcommands.Command {
	return &groupCmd{
		name:     "tx",
		synopsis: "record and list transactions",
		commands: []subcommands.Command{&txAddCmd{}, &txListCmd{}, &txDeleteCmd{}},
	}
}

// endpointKinds maps a transaction type to the kinds of its source and destination.
func endpointKinds(t repository.TransactionType) (src, dst repository.Kind, ok bool) {
	switch t {
	case repository.Earning:
		return repository.KindIncome, repository.KindBudget, true
	case repository.Spending:
		return repository.KindBudget, repository.KindCategory, true
	case repository.Transfer:
		return repository.KindBudget, repository.KindBudget, true
	}
	return "", "", false
}

func resolveTags(ctx context.Context, e *env, list string) ([]int64, error) {
	var ids []int64
	for _, name := range splitList(list) {
		tag, err := resolveTag(ctx, e, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

type txAddCmd struct {
	typ       string
	from      string
	to        string
	amount    string
	date      string
	comment   string
	converted string
	rate      float64
	tags      string
}

func (*txAddCmd) Name() string     { return "add" }
func (*txAddCmd) Synopsis() string { return "record a transaction" }
func (*txAddCmd) Usage() string {
	return `moneysync tx add -t <earning|spending|transfer> -from <name> -to <name> -amount <n> [options]

  earning:  income -> budget
  spending: budget -> category
  transfer: budget -> budget

  Between currencies, -converted and/or -rate may be given; a missing value is
  derived from the latest known rate.
`
}
func (c *txAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "t", "spending", "transaction type")
	f.StringVar(&c.from, "from", "", "source name or #id")
	f.StringVar(&c.to, "to", "", "destination name or #id")
	f.StringVar(&c.amount, "amount", "", "amount in the source currency")
	f.StringVar(&c.date, "d", "", "date (YYYY-MM-DD), today by default")
	f.StringVar(&c.comment, "m", "", "comment")
	f.StringVar(&c.converted, "converted", "", "amount in the destination currency")
	f.Float64Var(&c.rate, "rate", 0, "exchange rate source -> destination")
	f.StringVar(&c.tags, "tags", "", "comma separated tag names")
}

func (c *txAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	typ := repository.TransactionType(strings.ToLower(c.typ))
	srcKind, dstKind, ok := endpointKinds(typ)
	if !ok || c.from == "" || c.to == "" || c.amount == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		amount, err := parseAmount(c.amount)
		if err != nil {
			return err
		}
		src, err := resolveEntity(ctx, e, srcKind, c.from)
		if err != nil {
			return err
		}
		dst, err := resolveEntity(ctx, e, dstKind, c.to)
		if err != nil {
			return err
		}
		in := service.TransactionInput{
			Type:          typ,
			SourceID:      src.ID,
			DestinationID: dst.ID,
			Amount:        amount,
			Date:          c.date,
			Comment:       c.comment,
		}
		if c.converted != "" {
			v, err := parseAmount(c.converted)
			if err != nil {
				return err
			}
			in.ConvertedAmount = &v
		}
		if c.rate != 0 {
			in.ExchangeRate = &c.rate
		}
		if in.TagIDs, err = resolveTags(ctx, e, c.tags); err != nil {
			return err
		}
		id, err := e.ledger.Transactions.Create(ctx, in)
		if err != nil {
			return err
		}
		printf("recorded transaction #%d\n", id)
		return nil
	})
}

type txListCmd struct {
	typ      string
	from     string
	to       string
	tags     string
	category string
	limit    int
}

func (*txListCmd) Name() string     { return "list" }
func (*txListCmd) Synopsis() string { return "list transactions, newest first" }
func (*txListCmd) Usage() string {
	return "moneysync tx list [-t <type>] [-from <date>] [-to <date>] [-tags <a,b>] [-category <name>] [-n <limit>]\n"
}
func (c *txListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "t", "", "only this transaction type")
	f.StringVar(&c.from, "from", "", "first date, inclusive")
	f.StringVar(&c.to, "to", "", "last date, inclusive")
	f.StringVar(&c.tags, "tags", "", "only transactions with any of these tags")
	f.StringVar(&c.category, "category", "", "only spending into this category")
	f.IntVar(&c.limit, "n", 50, "maximum rows")
}

func (c *txListCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		filters := repository.TransactionFilters{
			Type:  repository.TransactionType(strings.ToLower(c.typ)),
			From:  c.from,
			To:    c.to,
			Limit: c.limit,
		}
		var err error
		if filters.TagIDs, err = resolveTags(ctx, e, c.tags); err != nil {
			return err
		}
		if c.category != "" {
			cat, err := resolveEntity(ctx, e, repository.KindCategory, c.category)
			if err != nil {
				return err
			}
			filters.CategoryIDs = []int64{cat.ID}
		}
		txs, err := e.ledger.Transactions.List(ctx, filters)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(txs))
		for _, t := range txs {
			rows = append(rows, txRow(t))
		}
		printTable("Transactions", []string{"#", "Date", "Type", "From", "To", "Amount", "Converted", "Tags", "Comment"}, rows, 5, 6)
		return nil
	})
}

func txRow(t repository.TransactionDetail) []string {
	converted := ""
	if t.ConvertedAmount != nil && t.DestinationCurrency != nil {
		converted = money(*t.ConvertedAmount, *t.DestinationCurrency)
	}
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return []string{
		strconv.FormatInt(t.ID, 10),
		t.Date,
		string(t.Type),
		t.SourceName,
		t.DestinationName,
		money(t.Amount, t.SourceCurrency),
		converted,
		strings.Join(names, ","),
		t.Comment,
	}
}

type txDeleteCmd struct{}

func (*txDeleteCmd) Name() string           { return "delete" }
func (*txDeleteCmd) Synopsis() string       { return "delete a transaction" }
func (*txDeleteCmd) Usage() string          { return "moneysync tx delete <id>\n" }
func (*txDeleteCmd) SetFlags(*flag.FlagSet) {}

func (*txDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(f.Arg(0), "#"), 10, 64)
	if err != nil {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		if err := e.ledger.Transactions.Delete(ctx, id); err != nil {
			return err
		}
		printf("deleted transaction #%d\n", id)
		return nil
	})
}
