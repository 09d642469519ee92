package main

import (
	"fmt"
	"os"

	"github.com/openlibris/circulate/internal/cli"
	"github.com/openlibris/circulate/internal/config"
	"github.com/openlibris/circulate/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// No arguments or "worker" runs the scheduled batch worker
	if len(os.Args) < 2 || os.Args[1] == "worker" {
		cfg := config.NewConfig()
		if err := entrypoint.Run(cfg, Version); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "coverage":
		cmd := cli.NewCoverageRunCommand()
		if err := cmd.ParseFlags(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "backfill":
		cmd := cli.NewBackfillCommand()
		if err := cmd.ParseFlags(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "search-migrate":
		cmd := cli.NewSearchMigrateCommand()
		if err := cmd.ParseFlags(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("circulate %s (%s)\n", Version, Commit)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`circulate - identifier equivalence and search index worker

Usage:
  circulate [worker]          Run the scheduled batch worker (default)
  circulate coverage          Run one equivalents coverage pass
  circulate backfill          Seed missing coverage ledger rows
  circulate search-migrate    Run a search index migration smoke pass
  circulate version           Print version information

Run 'circulate <command> -h' for command options.
`)
}
