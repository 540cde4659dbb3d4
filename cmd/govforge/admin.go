package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/GovForge/internal/adapter/postgres"
	"github.com/Strob0t/GovForge/internal/config"
	"github.com/Strob0t/GovForge/internal/domain/actor"
	"github.com/Strob0t/GovForge/internal/domain/vote"
	"github.com/Strob0t/GovForge/internal/middleware"
	"github.com/Strob0t/GovForge/internal/secrets"
)

// runMigrate dispatches migrate subcommands (up, down, version).
func runMigrate(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printMigrateHelp()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()

	switch args[0] {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Migrations applied.")
	case "down":
		fs := flag.NewFlagSet("down", flag.ContinueOnError)
		steps := fs.Int("steps", 1, "number of migrations to roll back")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s).\n", *steps)
	case "version":
		v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		fmt.Println(v)
	default:
		printMigrateHelp()
		return fmt.Errorf("unknown migrate command: %s", args[0])
	}
	return nil
}

func printMigrateHelp() {
	fmt.Fprintf(os.Stderr, `Usage: govforge migrate <command> [options]

Commands:
  up        Apply all pending migrations
  down      Roll back migrations (--steps N, default 1)
  version   Print the current schema version
`)
}

// runToken issues a bearer token for the API.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	id := fs.String("actor", "", "actor id (required)")
	roles := fs.String("roles", "", "comma separated roles, e.g. approver,admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--actor is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	vault, err := openVault(cfg)
	if err != nil {
		return err
	}
	secret := vault.Source(secrets.KeyJWTSecret, cfg.Auth.JWTSecret)()
	if secret == "" {
		secret, err = promptSecret("JWT secret: ")
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
	}
	if secret == "" {
		return fmt.Errorf("a JWT secret is required (auth.jwt_secret or GOVFORGE_JWT_SECRET)")
	}

	a := actor.Actor{ID: *id}
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			a.Roles = append(a.Roles, r)
		}
	}

	token, err := middleware.NewTokenVerifier(secret, cfg.Auth.Issuer).Issue(a, *ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}

// runVoters dispatches voter registry subcommands (list, set).
func runVoters(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printVotersHelp()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	switch args[0] {
	case "list":
		voters, err := store.ListVoters(ctx)
		if err != nil {
			return fmt.Errorf("list voters: %w", err)
		}
		if len(voters) == 0 {
			fmt.Println("No voters registered.")
			return nil
		}
		calc, err := vote.NewCalculator(cfg.Governance.Weights)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tSTAKE\tREPUTATION\tPOWER\tELIGIBLE")
		for i := range voters {
			v := &voters[i]
			power, err := calc.VoterPower(v)
			if err != nil {
				return fmt.Errorf("voter %s: %w", v.ID, err)
			}
			eligible := cfg.Governance.Eligibility.Check(v) == nil
			_, _ = fmt.Fprintf(w, "%s\t%d\t%g\t%g\t%t\n", v.ID, v.Stake, v.Reputation, power, eligible)
		}
		return w.Flush()
	case "set":
		fs := flag.NewFlagSet("set", flag.ContinueOnError)
		id := fs.String("id", "", "voter id (required)")
		stake := fs.Int64("stake", 0, "token stake")
		reputation := fs.Float64("reputation", 0, "reputation score in [0, 100]")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		v := &vote.Voter{ID: *id, Stake: *stake, Reputation: *reputation, UpdatedAt: time.Now().UTC()}
		if err := v.Validate(); err != nil {
			return err
		}
		if err := store.UpsertVoter(ctx, v); err != nil {
			return fmt.Errorf("upsert voter: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Voter %s registered (stake=%d, reputation=%g)\n", v.ID, v.Stake, v.Reputation)
		return nil
	default:
		printVotersHelp()
		return fmt.Errorf("unknown voters command: %s", args[0])
	}
}

func printVotersHelp() {
	fmt.Fprintf(os.Stderr, `Usage: govforge voters <command> [options]

Commands:
  list   List registered voters with their voting power
  set    Register or update a voter (--id, --stake, --reputation)

Examples:
  govforge voters set --id alice --stake 1000 --reputation 50
  govforge voters list
`)
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) { //nolint:unconvert // int conversion needed on some platforms
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
