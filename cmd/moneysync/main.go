package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/database/repository"
)

var configPath = flag.String("config", "", "Path to config.toml. Overrides $MONEYSYNC_CONFIG.")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander)

	flag.Parse()
	if *configPath != "" {
		os.Setenv("MONEYSYNC_CONFIG", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(int(commander.Execute(ctx)))
}

// register adds every command to c, grouped for the help listing.
func register(c *subcommands.Commander) {
	c.Register(&initCmd{}, "store")
	c.Register(&exportCmd{}, "store")
	c.Register(&importCmd{}, "store")
	c.Register(&resetCmd{}, "store")
	c.Register(&settingsCmd{}, "store")

	c.Register(entityGroup(repository.KindIncome), "entities")
	c.Register(entityGroup(repository.KindBudget), "entities")
	c.Register(entityGroup(repository.KindCategory), "entities")
	c.Register(tagGroup(), "entities")

	c.Register(txGroup(), "ledger")
	c.Register(&balancesCmd{}, "ledger")
	c.Register(reportGroup(), "ledger")

	c.Register(ratesGroup(), "rates")

	c.Register(syncGroup(), "sync")
}

// groupCmd dispatches to a nested commander, like "tx add".
type groupCmd struct {
	name     string
	synopsis string
	commands []subcommands.Command
}

func (g *groupCmd) Name() string     { return g.name }
func (g *groupCmd) Synopsis() string { return g.synopsis }
func (g *groupCmd) Usage() string {
	usage := "moneysync " + g.name + " <subcommand> [options]\n\n  " + g.synopsis + "\n\nSubcommands:\n"
	for _, c := range g.commands {
		usage += "  " + c.Name() + "\t" + c.Synopsis() + "\n"
	}
	return usage
}
func (g *groupCmd) SetFlags(*flag.FlagSet) {}

func (g *groupCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	commander := subcommands.NewCommander(f, "moneysync "+g.name)
	commander.Register(commander.HelpCommand(), "")
	for _, c := range g.commands {
		commander.Register(c, "")
	}
	return commander.Execute(ctx, args...)
}
