package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/kevin07696/paypal-billing/internal/db/migrations"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const dialect = "postgres"

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	dir   = flags.String("dir", "", "directory with migration files (default: migrations embedded in the binary)")
)

func main() {
	flags.Usage = usage
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return
	}
	command := args[0]

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	_ = godotenv.Load()

	db, err := sql.Open("pgx", dsn())
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := goose.SetDialect(dialect); err != nil {
		logger.Fatal("failed to set dialect", zap.Error(err))
	}

	migrationsDir := *dir
	if migrationsDir == "" {
		goose.SetBaseFS(migrations.FS)
		migrationsDir = "."
	}

	if err := goose.Run(command, db, migrationsDir, args[1:]...); err != nil {
		logger.Fatal("goose command failed", zap.String("command", command), zap.Error(err))
	}
}

// dsn prefers DATABASE_URL and falls back to the DB_* variables
func dsn() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "paypal_billing"),
		getEnv("DB_SSL_MODE", "disable"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func usage() {
	fmt.Print(`Usage: migrate [-dir DIR] COMMAND

Commands:
    up                   Migrate the DB to the most recent version available
    up-to VERSION        Migrate the DB to a specific VERSION
    down                 Roll back the version by 1
    reset                Roll back all migrations
    status               Dump the migration status for the current DB
    version              Print the current version of the database
    create NAME sql      Creates a new migration file (requires -dir)

Examples:
    migrate up
    migrate status
    migrate -dir internal/db/migrations create add_refunds sql
`)
}
