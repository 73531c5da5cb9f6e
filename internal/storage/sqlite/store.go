package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath = "data/arb.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the scan tables exist.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range schemaSQL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// DropTables removes the scan tables.
func (s *Store) DropTables(ctx context.Context) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS arb_opportunities;`,
		`DROP TABLE IF EXISTS scan_runs;`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ClearTables deletes every stored run and opportunity.
func (s *Store) ClearTables(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM arb_opportunities;`,
		`DELETE FROM scan_runs;`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schemaSQL = []string{`
CREATE TABLE IF NOT EXISTS scan_runs (
	run_id TEXT PRIMARY KEY,
	venue_a TEXT NOT NULL,
	venue_b TEXT NOT NULL,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	threshold_pct REAL NOT NULL,
	pairs_matched INTEGER NOT NULL,
	book_failures INTEGER NOT NULL,
	opportunities INTEGER NOT NULL,
	partial INTEGER NOT NULL,
	diagnostics_json TEXT
);`, `
CREATE TABLE IF NOT EXISTS arb_opportunities (
	run_id TEXT NOT NULL REFERENCES scan_runs(run_id),
	rank INTEGER NOT NULL,
	pair_id TEXT NOT NULL,
	title TEXT NOT NULL,
	strategy_kind TEXT NOT NULL,
	roi_pct REAL NOT NULL,
	roi_before_fees_pct REAL NOT NULL,
	total_cost REAL NOT NULL,
	tradeable_usdc REAL NOT NULL,
	strategy TEXT,
	prices TEXT,
	match_score INTEGER,
	time_to_expiry_days INTEGER,
	venue_a TEXT,
	venue_a_id TEXT,
	venue_b TEXT,
	venue_b_id TEXT,
	legs_json TEXT,
	PRIMARY KEY (run_id, rank)
);`, `
CREATE INDEX IF NOT EXISTS idx_arb_opportunities_pair ON arb_opportunities(pair_id, strategy_kind);`,
}
