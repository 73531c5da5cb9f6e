package main

import (
	"context"
	"flag"
	"log"

	"github.com/hetulpatel/arbscan/internal/config"
	"github.com/hetulpatel/arbscan/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
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

	if err := store.ClearTables(context.Background()); err != nil {
		log.Fatalf("clear tables: %v", err)
	}
	log.Printf("scan_runs and arb_opportunities cleared at %s", store.Path())
}
