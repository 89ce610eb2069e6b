package main

import (
	"context"
	"flag"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/subcommands"

	"github.com/jask/moneysync/internal/database/repository"
)

func tagGroup() subcommands.Command {
	return &groupCmd{
		name:     "tag",
		synopsis: "manage transaction tags",
		commands: []subcommands.Command{&tagAddCmd{}, &tagListCmd{}, &tagUpdateCmd{}, &tagDeleteCmd{}},
	}
}

func resolveTag(ctx context.Context, e *env, ref string) (repository.Tag, error) {
	if strings.HasPrefix(ref, "#") {
		id, err := strconv.ParseInt(ref[1:], 10, 64)
		if err != nil {
			return repository.Tag{}, usageErr("invalid id %q", ref)
		}
		tags, err := e.ledger.Tags.List(ctx)
		if err != nil {
			return repository.Tag{}, err
		}
		for _, t := range tags {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return e.ledger.Tags.Resolve(ctx, ref)
}

type tagAddCmd struct {
	color string
}

func (*tagAddCmd) Name() string     { return "add" }
func (*tagAddCmd) Synopsis() string { return "create a tag" }
func (*tagAddCmd) Usage() string    { return "moneysync tag add [-color <hex>] <name>\n" }
func (c *tagAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.color, "color", "", "hex color")
}

func (c *tagAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		id, err := e.ledger.Tags.Add(ctx, f.Arg(0), c.color)
		if err != nil {
			return err
		}
		printf("added tag #%d\n", id)
		return nil
	})
}

type tagListCmd struct{}

func (*tagListCmd) Name() string           { return "list" }
func (*tagListCmd) Synopsis() string       { return "list tags" }
func (*tagListCmd) Usage() string          { return "moneysync tag list\n" }
func (*tagListCmd) SetFlags(*flag.FlagSet) {}

func (*tagListCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, e *env) error {
		tags, err := e.ledger.Tags.List(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(tags))
		for _, t := range tags {
			swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color)).Render("●")
			rows = append(rows, []string{strconv.FormatInt(t.ID, 10), swatch + " " + t.Name, t.Color})
		}
		printTable("Tags", []string{"#", "Name", "Color"}, rows)
		return nil
	})
}

type tagUpdateCmd struct {
	name  string
	color string
}

func (*tagUpdateCmd) Name() string     { return "update" }
func (*tagUpdateCmd) Synopsis() string { return "rename or recolor a tag" }
func (*tagUpdateCmd) Usage() string {
	return "moneysync tag update [-name <n>] [-color <hex>] <name|#id>\n"
}
func (c *tagUpdateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "new name")
	f.StringVar(&c.color, "color", "", "new color")
}

func (c *tagUpdateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		tag, err := resolveTag(ctx, e, f.Arg(0))
		if err != nil {
			return err
		}
		var name, color *string
		if c.name != "" {
			name = &c.name
		}
		if c.color != "" {
			color = &c.color
		}
		return e.ledger.Tags.Update(ctx, tag.ID, name, color)
	})
}

type tagDeleteCmd struct{}

func (*tagDeleteCmd) Name() string           { return "delete" }
func (*tagDeleteCmd) Synopsis() string       { return "delete a tag and detach it from transactions" }
func (*tagDeleteCmd) Usage() string          { return "moneysync tag delete <name|#id>\n" }
func (*tagDeleteCmd) SetFlags(*flag.FlagSet) {}

func (*tagDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, e *env) error {
		tag, err := resolveTag(ctx, e, f.Arg(0))
		if err != nil {
			return err
		}
		if err := e.ledger.Tags.Delete(ctx, tag.ID); err != nil {
			return err
		}
		printf("deleted tag %q\n", tag.Name)
		return nil
	})
}
