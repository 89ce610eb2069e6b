package main

import (
	"context"
	"flag"
	"sort"

	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/database/repository"
)

type initCmd struct{}

func (*initCmd) Name() string     { return "init" }
func (*initCmd) Synopsis() string { return "create or migrate the local ledger" }
func (*initCmd) Usage() string {
	return `moneysync init

  Opens the ledger, applying any pending schema migrations, and prints where it lives.
`
}
func (*initCmd) SetFlags(*flag.FlagSet) {}

func (*initCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		id, _, err := e.ledger.Settings.Get(ctx, repository.SettingLedgerID)
		if err != nil {
			return err
		}
		display, err := e.ledger.Settings.DisplayCurrency(ctx)
		if err != nil {
			return err
		}
		printf("ledger   %s\n", id)
		printf("database %s\n", e.store.Path())
		printf("currency %s\n", display)
		return nil
	})
}

type exportCmd struct{}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a backup of the ledger" }
func (*exportCmd) Usage() string {
	return `moneysync export <file.db|file.enc>

  Writes the whole ledger to a file. A .enc file is encrypted with the sync password.
`
}
func (*exportCmd) SetFlags(*flag.FlagSet) {}

func (*exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		if err := e.ledger.Backups.Export(ctx, f.Arg(0), e.password); err != nil {
			return err
		}
		printf("exported to %s\n", f.Arg(0))
		return nil
	})
}

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the ledger with a backup" }
func (*importCmd) Usage() string {
	return `moneysync import <file.db|file.enc>

  Replaces the local ledger with a backup written by export. The backup is
  migrated to the current schema; a file that fails to decrypt or is not a
  ledger leaves the current data untouched.
`
}
func (*importCmd) SetFlags(*flag.FlagSet) {}

func (*importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		if err := e.ledger.Backups.Import(ctx, f.Arg(0), e.password); err != nil {
			return err
		}
		printf("imported %s\n", f.Arg(0))
		return nil
	})
}

type resetCmd struct {
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "delete all ledger data" }
func (*resetCmd) Usage() string {
	return `moneysync reset -yes

  Deletes every entity, transaction, tag and rate. The display currency and
  ledger id are kept.
`
}
func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "confirm the reset")
}

func (c *resetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		if err := e.ledger.Maintenance.Reset(ctx); err != nil {
			return err
		}
		printf("ledger reset\n")
		return nil
	})
}

type settingsCmd struct{}

func (*settingsCmd) Name() string     { return "settings" }
func (*settingsCmd) Synopsis() string { return "show or change ledger settings" }
func (*settingsCmd) Usage() string {
	return `moneysync settings [<key> [<value>]]

  Without arguments lists every setting. With a key prints it; with a value sets it.
`
}
func (*settingsCmd) SetFlags(*flag.FlagSet) {}

func (*settingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		switch f.NArg() {
		case 0:
			all, err := e.ledger.Settings.All(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, all[k]})
			}
			printTable("Settings", []string{"Key", "Value"}, rows)
		case 1:
			v, ok, err := e.ledger.Settings.Get(ctx, f.Arg(0))
			if err != nil {
				return err
			}
			if !ok {
				return usageErr("setting %q is not set", f.Arg(0))
			}
			printf("%s\n", v)
		case 2:
			return e.ledger.Settings.Set(ctx, f.Arg(0), f.Arg(1))
		}
		return nil
	})
}
