package main

import (
	"context"
	"flag"
	"strconv"
	"time"

	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/rates"
)

func ratesGroup() subcommands.Command {
	return &groupCmd{
		name:     "rates",
		synopsis: "exchange rates",
		commands: []subcommands.Command{&ratesRefreshCmd{}, &ratesSetCmd{}, &ratesListCmd{}, &ratesCurrenciesCmd{}},
	}
}

type ratesRefreshCmd struct{}

func (*ratesRefreshCmd) Name() string     { return "refresh" }
func (*ratesRefreshCmd) Synopsis() string { return "fetch today's rates for every currency in use" }
func (*ratesRefreshCmd) Usage() string {
	return `moneysync rates refresh

  Fetches rates between every pair of currencies used by an entity, plus USD.
  Does nothing when today's rates are already stored.
`
}
func (*ratesRefreshCmd) SetFlags(*flag.FlagSet) {}

func (*ratesRefreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		rc := e.cfg.Rates
		provider := rates.NewHTTPProvider(rc.Primary, rc.Fallback, rc.Timeout, e.log.Named("rates"))
		stored, err := rates.NewRefresher(e.store, provider, time.Now, e.log.Named("rates")).Refresh(ctx)
		if err != nil {
			return err
		}
		printf("stored %d rate(s)\n", stored)
		return nil
	})
}

type ratesSetCmd struct {
	date string
}

func (*ratesSetCmd) Name() string     { return "set" }
func (*ratesSetCmd) Synopsis() string { return "store a rate by hand" }
func (*ratesSetCmd) Usage() string {
	return "moneysync rates set [-d <YYYY-MM-DD>] <base> <target> <rate>\n"
}
func (c *ratesSetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "rate date, today by default")
}

func (c *ratesSetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	rate, err := strconv.ParseFloat(f.Arg(2), 64)
	if err != nil {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		return e.ledger.Rates.Set(ctx, f.Arg(0), f.Arg(1), c.date, rate)
	})
}

type ratesListCmd struct{}

func (*ratesListCmd) Name() string           { return "list" }
func (*ratesListCmd) Synopsis() string       { return "list stored rates" }
func (*ratesListCmd) Usage() string          { return "moneysync rates list\n" }
func (*ratesListCmd) SetFlags(*flag.FlagSet) {}

func (*ratesListCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		list, err := e.ledger.Rates.List(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, r := range list {
			rows = append(rows, []string{r.Date, r.Base, r.Target, strconv.FormatFloat(r.Rate, 'f', -1, 64)})
		}
		printTable("Exchange rates", []string{"Date", "Base", "Target", "Rate"}, rows, 3)
		return nil
	})
}

type ratesCurrenciesCmd struct {
	refresh bool
}

func (*ratesCurrenciesCmd) Name() string     { return "currencies" }
func (*ratesCurrenciesCmd) Synopsis() string { return "list the currency catalog" }
func (*ratesCurrenciesCmd) Usage() string {
	return `moneysync rates currencies [-refresh]

  Lists known currency codes and names. The list is downloaded on first use
  or with -refresh; a built-in list is stored when the download fails. Once
  stored, only listed currencies can be assigned.
`
}
func (c *ratesCurrenciesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.refresh, "refresh", false, "download the list again")
}

func (c *ratesCurrenciesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		rc := e.cfg.Rates
		provider := rates.NewHTTPProvider(rc.Primary, rc.Fallback, rc.Timeout, e.log.Named("rates"))
		if c.refresh {
			stored, fellBack, err := rates.RefreshCatalog(ctx, e.store, provider, e.log.Named("rates"))
			if err != nil {
				return err
			}
			if fellBack {
				printf("download failed, stored %d built-in currencies\n", stored)
			} else {
				printf("stored %d currencies\n", stored)
			}
		} else if err := rates.EnsureCatalog(ctx, e.store, provider, e.log.Named("rates")); err != nil {
			return err
		}
		list, err := e.ledger.Currencies.List(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, cur := range list {
			rows = append(rows, []string{cur.Code, cur.Name})
		}
		printTable("Currencies", []string{"Code", "Name"}, rows)
		return nil
	})
}
