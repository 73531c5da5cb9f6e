package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hetulpatel/arbscan/internal/models"
)

func opp(title string, roi float64) models.Opportunity {
	return models.Opportunity{
		PairID:    title,
		Title:     title,
		Kind:      models.StrategyBinary,
		ROIPct:    roi,
		TotalCost: 0.95238,
		Strategy:  "Buy Polymarket Yes + Buy Opinion No",
	}
}

func TestRankStable(t *testing.T) {
	in := []models.Opportunity{opp("a", 2), opp("b", 5), opp("c", 2), opp("d", 3)}
	got := Rank(in)
	want := []string{"b", "d", "a", "c"}
	for i, o := range got {
		if o.Title != want[i] {
			t.Fatalf("rank[%d] = %s, want %s (full %v)", i, o.Title, want[i], got)
		}
	}
	if in[0].Title != "a" {
		t.Error("Rank must not reorder its input")
	}
}

func TestRowFormatting(t *testing.T) {
	days := 12
	o := models.Opportunity{
		Title:            "Will X happen?",
		Kind:             models.StrategyMultiOutcomeCross,
		ROIPct:           5.263157,
		TotalCost:        0.95,
		TradeableUSDC:    123.456,
		Strategy:         "s",
		Prices:           "p",
		MatchScore:       91,
		TimeToExpiryDays: &days,
		VenueIDs:         models.VenueIDs{A: "pm-1", B: "op-2"},
	}
	got := Row(o)
	want := []string{"Will X happen?", "multi-outcome-cross", "5.26", "0.9500", "123.46", "s", "p", "91", "12", "pm-1", "op-2"}
	if len(got) != len(Columns) {
		t.Fatalf("row has %d fields, header %d", len(got), len(Columns))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %s = %q, want %q", Columns[i], got[i], want[i])
		}
	}

	o.TimeToExpiryDays = nil
	if got := Row(o)[8]; got != "" {
		t.Errorf("missing expiry = %q, want empty", got)
	}
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "arbs.csv")
	if err := WriteCSVFile(path, []models.Opportunity{opp("Title, with comma", 3)}); err != nil {
		t.Fatalf("WriteCSVFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "Title, with comma" || records[1][2] != "3.00" {
		t.Errorf("row = %v", records[1])
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintTable(&buf, nil, Summary{ThresholdPct: 1, MarketsA: 10, MarketsB: 7, PairsMatched: 3}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "No arbs > 1% ROI") || !strings.Contains(buf.String(), "pairs matched: 3") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	if err := PrintTable(&buf, []models.Opportunity{opp("Fed cuts in March", 4.5)}, Summary{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "ROI%") || !strings.Contains(out, "4.50") || !strings.Contains(out, "Fed cuts in March") {
		t.Errorf("table output = %q", out)
	}
}
