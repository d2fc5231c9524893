package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/config"
	"github.com/MrJamesThe3rd/tally/internal/database"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/tally/internal/ledger/store"
)

type reconcileCmd struct {
	owner   string
	account string
	apply   bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "check cached balances against the transaction log" }
func (*reconcileCmd) Usage() string {
	return `ledgerctl reconcile -owner <id> [-account <id>] [-apply]

  Recomputes account balances from opening balance plus every transaction
  touching the account. Without -apply, exits non-zero when any balance
  has drifted.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "Owner whose accounts are checked.")
	f.StringVar(&c.account, "account", "", "Limit the check to one account.")
	f.BoolVar(&c.apply, "apply", false, "Overwrite drifted balances with the computed ones.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	owner, err := uuid.Parse(c.owner)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: -owner must be a uuid.")
		return subcommands.ExitUsageError
	}

	var accountID uuid.UUID
	if c.account != "" {
		if accountID, err = uuid.Parse(c.account); err != nil {
			fmt.Fprintln(os.Stderr, "Error: -account must be a uuid.")
			return subcommands.ExitUsageError
		}
	}

	cfg, err := config.LoadDB()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	svc := ledger.NewService(ledgerStore.New(db))

	var results []*ledger.Reconciliation

	if accountID != uuid.Nil {
		r, err := svc.Reconcile(ctx, owner, accountID, c.apply)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}

		results = []*ledger.Reconciliation{r}
	} else {
		results, err = svc.ReconcileOwner(ctx, owner, c.apply)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}

	if err := report(os.Stdout, results); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}

// report prints one line per account and returns the joined drift errors
// of accounts left unrepaired.
func report(w io.Writer, results []*ledger.Reconciliation) error {
	var errs []error

	for _, r := range results {
		status := "ok"

		switch {
		case r.Applied:
			status = "repaired"
		case !r.Drift.IsZero():
			status = "drift"
		}

		fmt.Fprintf(w, "%s\t%s\tcached=%s\tcomputed=%s\n",
			r.AccountID, status, r.Cached.StringFixed(2), r.Computed.StringFixed(2))

		if err := r.Err(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
