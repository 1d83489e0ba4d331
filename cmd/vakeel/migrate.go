package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vakeel/vakeel/internal/migration"
)

func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "up", "down", "status", "version":
		runMigrateSubcommand(subcommand, subargs)
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		printMigrateUsage()
		os.Exit(1)
	}
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  vakeel migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  status    Show migration status
  version   Show current migration version
  help      Show this help message

Options:
  --config <path>   Path to configuration file (YAML)
  --db-url <url>    Postgres connection URL (default: from config)

Examples:
  vakeel migrate up
  vakeel migrate up --config /etc/vakeel/config.yaml
  vakeel migrate down
  vakeel migrate status`)
}

func runMigrateSubcommand(subcommand string, args []string) {
	fs := flag.NewFlagSet("migrate "+subcommand, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbURL := fs.String("db-url", "", "Postgres connection URL")
	fs.Parse(args)

	url := *dbURL
	if url == "" {
		cfg := loadConfig(*configPath)
		url = cfg.Database.URL()
		if url == "" {
			fmt.Fprintln(os.Stderr, "Migrations require a Postgres database")
			os.Exit(1)
		}
	}

	migrator, err := migration.NewMigrator(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	ctx := context.Background()

	switch subcommand {
	case "up":
		err = cli.RunUp(ctx)
	case "down":
		err = cli.RunDown(ctx)
	case "status":
		err = cli.RunStatus(ctx)
	case "version":
		err = cli.RunVersion(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration command failed: %v\n", err)
		os.Exit(1)
	}
}
