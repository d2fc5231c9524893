package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/MrJamesThe3rd/tally/internal/config"
	"github.com/MrJamesThe3rd/tally/internal/database"
)

type migrateCmd struct {
	down int
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply or revert schema migrations" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate [-down <steps>]

  Applies every pending migration, or reverts the last <steps> when -down
  is given.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.down, "down", 0, "Number of migrations to revert instead of migrating up.")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.down < 0 {
		fmt.Fprintln(os.Stderr, "Error: -down must not be negative.")
		return subcommands.ExitUsageError
	}

	cfg, err := config.LoadDB()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.down > 0 {
		err = database.Rollback(cfg.ConnectionString(), c.down)
	} else {
		err = database.Migrate(cfg.ConnectionString())
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
