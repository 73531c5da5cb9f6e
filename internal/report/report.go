// Package report ranks opportunities and renders them as CSV or a console
// table.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/arbscan/internal/models"
)

// Columns is the fixed CSV header.
var Columns = []string{
	"title",
	"strategy_kind",
	"roi_pct",
	"total_cost",
	"tradeable_usdc",
	"strategy",
	"prices",
	"match_score",
	"time_to_expiry_days",
	"venue_a_id",
	"venue_b_id",
}

// Rank orders opportunities by ROI, highest first. Equal ROIs keep their
// input order.
func Rank(ops []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, len(ops))
	copy(out, ops)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ROIPct > out[j].ROIPct
	})
	return out
}

// Row formats one opportunity in Columns order.
func Row(o models.Opportunity) []string {
	expiry := ""
	if o.TimeToExpiryDays != nil {
		expiry = strconv.Itoa(*o.TimeToExpiryDays)
	}
	return []string{
		o.Title,
		string(o.Kind),
		round(o.ROIPct, 2),
		round(o.TotalCost, 4),
		round(o.TradeableUSDC, 2),
		o.Strategy,
		o.Prices,
		strconv.Itoa(o.MatchScore),
		expiry,
		o.VenueIDs.A,
		o.VenueIDs.B,
	}
}

func round(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// WriteCSV writes the header followed by one row per opportunity.
func WriteCSV(w io.Writer, ops []models.Opportunity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range ops {
		if err := cw.Write(Row(o)); err != nil {
			return fmt.Errorf("write row %s: %w", o.PairID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile replaces path with a fresh CSV report.
func WriteCSVFile(path string, ops []models.Opportunity) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, ops); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Summary carries the counts printed when a scan finds nothing.
type Summary struct {
	ThresholdPct float64
	MarketsA     int
	MarketsB     int
	PairsMatched int
	BookFailures int
	PairsSkipped int
}

// PrintTable writes a console table of ops, or a one-line explanation with
// the scan counts when ops is empty.
func PrintTable(w io.Writer, ops []models.Opportunity, sum Summary) error {
	if len(ops) == 0 {
		_, err := fmt.Fprintf(w, "No arbs > %s%% ROI (markets: %d/%d, pairs matched: %d, book failures: %d, pairs skipped: %d)\n",
			decimal.NewFromFloat(sum.ThresholdPct).String(), sum.MarketsA, sum.MarketsB, sum.PairsMatched, sum.BookFailures, sum.PairsSkipped)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROI%\tKIND\tCOST\tSIZE\tEXPIRY\tTITLE\tSTRATEGY")
	for _, o := range ops {
		r := Row(o)
		expiry := r[8]
		if expiry == "" {
			expiry = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r[2], r[1], r[3], r[4], expiry, truncate(o.Title, 60), o.Strategy)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
