package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/secrets"
	ledgersync "github.com/jask/moneysync/internal/sync"
)

func syncGroup() subcommands.Command {
	return &groupCmd{
		name:     "sync",
		synopsis: "synchronize with the remote encrypted copy",
		commands: []subcommands.Command{
			&syncInitCmd{},
			&syncPushCmd{},
			&syncPullCmd{},
			&syncStatusCmd{},
			&syncCredentialCmd{},
		},
	}
}

func requireSync(e *env) error {
	if !e.engine.Configured() {
		return usageErr("sync is not configured: set sync.backend and a password (%s or 'moneysync sync credential %s <pw>')",
			envPassword, secrets.SyncPassword)
	}
	return nil
}

type syncInitCmd struct{}

func (*syncInitCmd) Name() string     { return "init" }
func (*syncInitCmd) Synopsis() string { return "adopt the remote copy, or create it" }
func (*syncInitCmd) Usage() string {
	return `moneysync sync init

  Downloads and adopts the remote ledger when one exists. Otherwise uploads the
  local ledger as the first remote copy.
`
}
func (*syncInitCmd) SetFlags(*flag.FlagSet) {}

func (*syncInitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		if err := requireSync(e); err != nil {
			return err
		}
		res, err := e.engine.InitialSync(ctx)
		if err != nil {
			return err
		}
		if res == ledgersync.Pulled {
			printf("adopted remote ledger\n")
		} else {
			printf("created remote ledger\n")
		}
		return nil
	})
}

type syncPushCmd struct{}

func (*syncPushCmd) Name() string     { return "push" }
func (*syncPushCmd) Synopsis() string { return "upload the local ledger" }
func (*syncPushCmd) Usage() string {
	return `moneysync sync push

  Fails with a version conflict when the remote changed since the last sync;
  pull first, then push again.
`
}
func (*syncPushCmd) SetFlags(*flag.FlagSet) {}

func (*syncPushCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		if err := requireSync(e); err != nil {
			return err
		}
		if err := e.engine.Push(ctx); err != nil {
			return err
		}
		printf("pushed\n")
		return nil
	})
}

type syncPullCmd struct{}

func (*syncPullCmd) Name() string     { return "pull" }
func (*syncPullCmd) Synopsis() string { return "replace the local ledger with the remote copy" }
func (*syncPullCmd) Usage() string    { return "moneysync sync pull\n" }
func (*syncPullCmd) SetFlags(*flag.FlagSet) {}

func (*syncPullCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		if err := requireSync(e); err != nil {
			return err
		}
		res, err := e.engine.Pull(ctx)
		if err != nil {
			return err
		}
		printf("%s\n", res)
		return nil
	})
}

type syncStatusCmd struct{}

func (*syncStatusCmd) Name() string           { return "status" }
func (*syncStatusCmd) Synopsis() string       { return "show sync state" }
func (*syncStatusCmd) Usage() string          { return "moneysync sync status\n" }
func (*syncStatusCmd) SetFlags(*flag.FlagSet) {}

func (*syncStatusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		st := e.engine.Status()
		backend := e.cfg.Sync.Backend
		if !e.engine.Configured() {
			backend = mutedStyle.Render("not configured")
		}
		last := mutedStyle.Render("never")
		if !st.LastSync.IsZero() {
			last = st.LastSync.Local().Format(time.RFC1123)
		}
		version := st.Version
		if version == "" {
			version = mutedStyle.Render("none")
		}
		printTable("Sync", []string{"Backend", "Path", "State", "Pending", "Version", "Last sync"},
			[][]string{{backend, e.cfg.Sync.Path, string(st.State), strconv.FormatBool(st.Dirty), version, last}})
		return nil
	})
}

type syncCredentialCmd struct{}

func (*syncCredentialCmd) Name() string     { return "credential" }
func (*syncCredentialCmd) Synopsis() string { return "store or remove a sync secret" }
func (*syncCredentialCmd) Usage() string {
	return `moneysync sync credential <name> [<value>]

  Names: sync_password, github_token, s3_secret_key. Without a value the
  credential is removed.
`
}
func (*syncCredentialCmd) SetFlags(*flag.FlagSet) {}

func (*syncCredentialCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 || f.NArg() > 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	switch f.Arg(0) {
	case secrets.SyncPassword, secrets.GitHubToken, secrets.S3SecretKey:
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
	// the ledger is not needed here, and opening it may need these very secrets
	store, err := secrets.DefaultCredentialStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if f.NArg() == 1 {
		err = store.Delete(f.Arg(0))
	} else {
		err = store.Store(f.Arg(0), f.Arg(1))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
