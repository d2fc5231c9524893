package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/config"
	"github.com/MrJamesThe3rd/tally/internal/http/auth"
)

type tokenCmd struct {
	owner string
	ttl   time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API bearer token for an owner" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token [-owner <id>] [-ttl <duration>]

  Signs a token with AUTH_JWT_SECRET. A new owner id is generated when
  -owner is omitted.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "Owner id to put in the token subject.")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "Token lifetime.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	owner := uuid.New()

	if c.owner != "" {
		var err error
		if owner, err = uuid.Parse(c.owner); err != nil {
			fmt.Fprintln(os.Stderr, "Error: -owner must be a uuid.")
			return subcommands.ExitUsageError
		}
	}

	if c.ttl <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -ttl must be positive.")
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	raw, err := auth.New(auth.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}).Issue(owner, c.ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(os.Stderr, "owner %s\n", owner)
	fmt.Println(raw)

	return subcommands.ExitSuccess
}
