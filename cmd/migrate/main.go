package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kevin07696/payment-router/internal/adapters/postgres"
	"github.com/kevin07696/payment-router/internal/config"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/pkg/security"
)

var flags = flag.NewFlagSet("migrate", flag.ExitOnError)

func main() {
	flags.Usage = usage
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := security.NewLogger(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg.Database.ConnectionString(), args[0], args[1:]); err != nil {
		logger.Error("Migration failed", ports.String("command", args[0]), ports.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Migration finished", ports.String("command", args[0]))
}

func run(ctx context.Context, dsn, command string, args []string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	return postgres.Migrate(ctx, db, command, args...)
}

func usage() {
	fmt.Print(`Usage: migrate COMMAND

Runs the schema migrations embedded in the router binary against
DATABASE_URL (or DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME).

Commands:
    up                   Migrate the DB to the most recent version available
    up-by-one            Migrate the DB up by 1
    up-to VERSION        Migrate the DB to a specific VERSION
    down                 Roll back the version by 1
    down-to VERSION      Roll back to a specific VERSION
    redo                 Re-run the latest migration
    reset                Roll back all migrations
    status               Dump the migration status for the current DB
    version              Print the current version of the database
`)
}
