package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hetulpatel/arbscan/internal/config"
	"github.com/hetulpatel/arbscan/internal/report"
	"github.com/hetulpatel/arbscan/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	limit := flag.Int("n", 20, "number of opportunities to show")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.SQLite.Path == "" {
		log.Fatalf("sqlite.path (or SQLITE_PATH) is not set")
	}
	store, err := sqlite.Open(cfg.SQLite.Path)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	run, ops, err := store.TopOpportunities(context.Background(), *limit)
	if errors.Is(err, sqlite.ErrNoRuns) {
		fmt.Println("no scans recorded yet")
		return
	}
	if err != nil {
		log.Fatalf("top opportunities: %v", err)
	}

	partial := ""
	if run.Partial {
		partial = " (partial)"
	}
	fmt.Printf("run %s %s vs %s at %s, took %s%s\n",
		run.RunID, run.VenueA, run.VenueB, run.StartedAt.Format("2006-01-02 15:04:05Z07:00"), run.Duration, partial)
	sum := report.Summary{
		ThresholdPct: run.ThresholdPct,
		PairsMatched: run.PairsMatched,
		BookFailures: run.BookFailures,
	}
	if err := report.PrintTable(os.Stdout, ops, sum); err != nil {
		log.Fatalf("print: %v", err)
	}
}
