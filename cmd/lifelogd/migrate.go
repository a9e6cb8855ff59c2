package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/lifelog/core/config"
	"github.com/lifelog/core/internal/migration"
)

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: lifelogd migrate <up|down|status>")
		os.Exit(1)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	migrator, err := migration.NewMigratorFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	ctx := context.Background()
	switch fs.Arg(0) {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("last migration rolled back")
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate status failed: %v\n", err)
			os.Exit(1)
		}
		for _, st := range statuses {
			fmt.Printf("%+v\n", st)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown migrate subcommand: %s\n", fs.Arg(0))
		os.Exit(1)
	}
}
