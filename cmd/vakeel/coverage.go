package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/vakeel/vakeel/internal/database"
	"github.com/vakeel/vakeel/retrieval"
)

// runCoverage reports how many chunks each retrieval strategy matches
// for a term. Useful when a query that should hit the corpus comes back
// empty.
func runCoverage(args []string) {
	fs := flag.NewFlagSet("coverage", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	term := fs.String("term", "", "Search term to inspect")
	limit := fs.Int("limit", 5, "Number of preview chunks to show")
	fs.Parse(args)

	if *term == "" {
		fmt.Fprintln(os.Stderr, "Usage: vakeel coverage --term <term> [--limit N]")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := zap.NewNop()

	pool, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN(),
		Pool:   database.DefaultPoolConfig(),
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := retrieval.NewGormStore(pool.DB(), cfg.Retrieval.Table, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create chunk store: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := store.Coverage(ctx, *term, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Coverage query failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Coverage for %q:\n\n", report.Term)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tMATCHES")
	fmt.Fprintln(w, "--------\t-------")
	fmt.Fprintf(w, "full-text\t%d\n", report.FullTextMatches)
	fmt.Fprintf(w, "substring\t%d\n", report.SubstringMatches)
	fmt.Fprintf(w, "label/metadata\t%d\n", report.MetadataMatches)
	w.Flush()

	if len(report.Previews) > 0 {
		fmt.Println("\nPreviews:")
		for _, chunk := range report.Previews {
			text := chunk.Text
			if len(text) > 120 {
				text = text[:120] + "..."
			}
			fmt.Printf("  [%s] %s\n", chunk.Source, text)
		}
	}
}
