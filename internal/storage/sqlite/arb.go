package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/models"
)

// ScanRecord is the per-run row stored next to a scan's opportunities.
type ScanRecord struct {
	RunID        string
	VenueA       string
	VenueB       string
	StartedAt    time.Time
	Duration     time.Duration
	ThresholdPct float64
	PairsMatched int
	BookFailures int
	Partial      bool
	Diagnostics  any
}

// InsertScan stores a run and its ranked opportunities in one transaction.
func (s *Store) InsertScan(ctx context.Context, run ScanRecord, ops []models.Opportunity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialized")
	}
	diagJSON, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO scan_runs (
	run_id, venue_a, venue_b, started_at, duration_ms, threshold_pct,
	pairs_matched, book_failures, opportunities, partial, diagnostics_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.VenueA, run.VenueB,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(), run.ThresholdPct,
		run.PairsMatched, run.BookFailures, len(ops), run.Partial,
		string(diagJSON),
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO arb_opportunities (
	run_id, rank, pair_id, title, strategy_kind, roi_pct, roi_before_fees_pct,
	total_cost, tradeable_usdc, strategy, prices, match_score, time_to_expiry_days,
	venue_a, venue_a_id, venue_b, venue_b_id, legs_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare opportunity insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range ops {
		legsJSON, err := json.Marshal(o.Legs)
		if err != nil {
			return fmt.Errorf("marshal legs: %w", err)
		}
		var expiry sql.NullInt64
		if o.TimeToExpiryDays != nil {
			expiry = sql.NullInt64{Int64: int64(*o.TimeToExpiryDays), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			run.RunID, i+1, o.PairID, o.Title, string(o.Kind), o.ROIPct, o.ROIBeforeFeesPct,
			o.TotalCost, o.TradeableUSDC, o.Strategy, o.Prices, o.MatchScore, expiry,
			string(o.VenueIDs.VenueA), o.VenueIDs.A, string(o.VenueIDs.VenueB), o.VenueIDs.B,
			string(legsJSON),
		); err != nil {
			return fmt.Errorf("insert opportunity %s: %w", o.PairID, err)
		}
	}
	return tx.Commit()
}

// ErrNoRuns is returned when the database holds no scan yet.
var ErrNoRuns = errors.New("no scan runs stored")

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (ScanRecord, error) {
	var (
		rec       ScanRecord
		started   string
		duration  int64
		partial   bool
		diagnosis sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT run_id, venue_a, venue_b, started_at, duration_ms, threshold_pct,
	pairs_matched, book_failures, partial, diagnostics_json
FROM scan_runs ORDER BY started_at DESC LIMIT 1`).Scan(
		&rec.RunID, &rec.VenueA, &rec.VenueB, &started, &duration, &rec.ThresholdPct,
		&rec.PairsMatched, &rec.BookFailures, &partial, &diagnosis,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ScanRecord{}, ErrNoRuns
	}
	if err != nil {
		return ScanRecord{}, fmt.Errorf("query latest run: %w", err)
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	rec.Duration = time.Duration(duration) * time.Millisecond
	rec.Partial = partial
	if diagnosis.Valid {
		rec.Diagnostics = json.RawMessage(diagnosis.String)
	}
	return rec, nil
}

// TopOpportunities returns up to limit opportunities of the latest run in
// rank order.
func (s *Store) TopOpportunities(ctx context.Context, limit int) (ScanRecord, []models.Opportunity, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return ScanRecord{}, nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT pair_id, title, strategy_kind, roi_pct, roi_before_fees_pct, total_cost,
	tradeable_usdc, strategy, prices, match_score, time_to_expiry_days,
	venue_a, venue_a_id, venue_b, venue_b_id, legs_json
FROM arb_opportunities WHERE run_id = ? ORDER BY rank LIMIT ?`, run.RunID, limit)
	if err != nil {
		return run, nil, fmt.Errorf("query opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		var (
			o              models.Opportunity
			kind           string
			venueA, venueB string
			expiry         sql.NullInt64
			legsJSON       sql.NullString
		)
		if err := rows.Scan(
			&o.PairID, &o.Title, &kind, &o.ROIPct, &o.ROIBeforeFeesPct, &o.TotalCost,
			&o.TradeableUSDC, &o.Strategy, &o.Prices, &o.MatchScore, &expiry,
			&venueA, &o.VenueIDs.A, &venueB, &o.VenueIDs.B, &legsJSON,
		); err != nil {
			return run, nil, fmt.Errorf("scan opportunity: %w", err)
		}
		o.Kind = models.StrategyKind(kind)
		o.VenueIDs.VenueA = collectors.Venue(venueA)
		o.VenueIDs.VenueB = collectors.Venue(venueB)
		if expiry.Valid {
			days := int(expiry.Int64)
			o.TimeToExpiryDays = &days
		}
		if legsJSON.Valid && legsJSON.String != "" {
			if err := json.Unmarshal([]byte(legsJSON.String), &o.Legs); err != nil {
				return run, nil, fmt.Errorf("decode legs of %s: %w", o.PairID, err)
			}
		}
		out = append(out, o)
	}
	return run, out, rows.Err()
}
