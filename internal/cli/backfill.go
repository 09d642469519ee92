package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/openlibris/circulate/internal/config"
	"github.com/openlibris/circulate/internal/coverage"
	"github.com/openlibris/circulate/internal/database"
)

// BackfillCommand seeds coverage ledger rows for edges that predate the
// ledger or arrived through a bulk import.
type BackfillCommand struct {
	DatabasePath string
	Verbose      bool
}

// NewBackfillCommand creates a new BackfillCommand.
func NewBackfillCommand() *BackfillCommand {
	return &BackfillCommand{}
}

// ParseFlags parses command line flags.
func (cmd *BackfillCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalog database file")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s backfill [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Insert Registered coverage ledger rows for every equivalency that\n")
		fmt.Fprintf(os.Stderr, "has none. Safe to run repeatedly; existing rows are never touched.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the command.
func (cmd *BackfillCommand) Run() error {
	log, err := buildLogger(cmd.Verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	provider := coverage.NewProvider(db.DB, log, coverage.Options{})
	inserted, err := provider.BackfillMissing()
	if err != nil {
		return err
	}

	fmt.Printf("inserted=%d\n", inserted)
	return nil
}
