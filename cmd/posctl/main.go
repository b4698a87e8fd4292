// Command posctl is the operator tool of a POS terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/cmd/posctl/cli"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

const usage = `usage:
  posctl jobs trigger <sync:run|stock:reconcile|giftcards:bulk_generate> [flags]
  posctl jobs stats [--json]
  posctl migrate
  posctl seed`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	switch args[0] {
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	case "migrate":
		return runMigrate(ctx, cfg, stdout, stderr)
	case "seed":
		return runSeed(ctx, cfg, stdout, stderr)
	}
	_, _ = fmt.Fprintln(stderr, usage)
	return 2
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return 2
	}
	if cfg.RedisAddr == "" {
		_, _ = fmt.Fprintln(stderr, "jobs: REDIS_ADDR is not set")
		return 1
	}
	jobsCLI, err := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			slog.Default().Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		opts := cli.TriggerOptions{Stdout: stdout, Stderr: stderr}
		fs.StringVar(&opts.WorkspaceID, "workspace", cfg.WorkspaceID, "workspace id")
		fs.IntVar(&opts.Count, "count", 0, "number of gift cards")
		fs.StringVar(&opts.Amount, "amount", "", "gift card amount")
		fs.StringVar(&opts.IssuedBy, "issued-by", "posctl", "issuing user")
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, usage)
			return 2
		}
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		return jobsCLI.TriggerCommand(ctx, args[1], opts)
	case "stats":
		fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
		fs.SetOutput(stderr)
		opts := cli.StatsOptions{Stdout: stdout, Stderr: stderr}
		fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return jobsCLI.StatsCommand(opts)
	}
	_, _ = fmt.Fprintln(stderr, usage)
	return 2
}

func openPostgres(ctx context.Context, cfg *app.Config, cmd string, stderr io.Writer) (*docstore.Postgres, bool) {
	if cfg.StoreDriver != app.StoreDriverPostgres {
		_, _ = fmt.Fprintf(stderr, "%s: store driver %s has no schema\n", cmd, cfg.StoreDriver)
		return nil, false
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return nil, false
	}
	store := docstore.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return nil, false
	}
	return store, true
}

func runMigrate(ctx context.Context, cfg *app.Config, stdout, stderr io.Writer) int {
	store, ok := openPostgres(ctx, cfg, "migrate", stderr)
	if !ok {
		return 1
	}
	defer store.Close()
	_, _ = fmt.Fprintln(stdout, "documents schema is up to date")
	return 0
}

func runSeed(ctx context.Context, cfg *app.Config, stdout, stderr io.Writer) int {
	store, ok := openPostgres(ctx, cfg, "seed", stderr)
	if !ok {
		return 1
	}
	defer store.Close()
	services := app.NewServices(store, cfg)
	seeder := cli.Seeder{Inventory: services.Inventory, Suppliers: services.Suppliers}
	return seeder.SeedCommand(ctx, cfg.WorkspaceID, stdout, stderr)
}
