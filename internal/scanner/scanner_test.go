package scanner

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hetulpatel/arbscan/internal/arb"
	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/config"
	"github.com/hetulpatel/arbscan/internal/models"
	"github.com/hetulpatel/arbscan/internal/workers"
)

type fakeSource struct {
	venue   collectors.Venue
	markets []collectors.RawMarket
	listErr error
	asks    map[string]float64
	errs    map[string]error
	block   map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSource) Venue() collectors.Venue { return f.venue }

func (f *fakeSource) ListMarkets(context.Context) ([]collectors.RawMarket, error) {
	return f.markets, f.listErr
}

func (f *fakeSource) FetchBook(ctx context.Context, token string) (collectors.RawBook, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[token]++
	f.mu.Unlock()

	if f.block[token] {
		<-ctx.Done()
		return collectors.RawBook{}, ctx.Err()
	}
	if err := f.errs[token]; err != nil {
		return collectors.RawBook{}, err
	}
	ask, ok := f.asks[token]
	if !ok {
		return collectors.RawBook{}, collectors.ErrNotFound
	}
	return collectors.RawBook{
		TokenID: token,
		Bids:    []collectors.RawLevel{{Price: ask - 0.01, Size: 1000}},
		Asks:    []collectors.RawLevel{{Price: ask, Size: 1000}},
	}, nil
}

func binaryRaw(venue collectors.Venue, id, title string) collectors.RawMarket {
	return collectors.RawMarket{
		Venue:    venue,
		ID:       id,
		Title:    title,
		YesToken: id + "-yes",
		NoToken:  id + "-no",
	}
}

func scanConfig() config.Scan {
	return config.Scan{
		ArbThresholdPct:       1,
		FuzzyMatchThreshold:   85,
		OutcomeMatchThreshold: 70,
		MaxDepthUSDC:          1000,
		FeeNotionalUSD:        100,
		BookLevels:            20,
		Workers:               4,
		Timeout:               5 * time.Second,
	}
}

func fixture() (*fakeSource, *fakeSource) {
	a := &fakeSource{
		venue: collectors.VenuePolymarket,
		markets: []collectors.RawMarket{
			binaryRaw(collectors.VenuePolymarket, "pm1", "Will it rain in London tomorrow?"),
			binaryRaw(collectors.VenuePolymarket, "pm2", "Fed cuts rates in March"),
			{Venue: collectors.VenuePolymarket, Title: "no id"},
		},
		asks: map[string]float64{"pm1-yes": 0.40, "pm1-no": 0.62, "pm2-yes": 0.50, "pm2-no": 0.52},
	}
	b := &fakeSource{
		venue: collectors.VenueOpinion,
		markets: []collectors.RawMarket{
			binaryRaw(collectors.VenueOpinion, "op1", "Will it rain in London tomorrow"),
			binaryRaw(collectors.VenueOpinion, "op2", "Fed cuts rates in March?"),
			binaryRaw(collectors.VenueOpinion, "op3", "Completely unrelated election question"),
		},
		asks: map[string]float64{"op1-yes": 0.55, "op1-no": 0.55, "op2-yes": 0.49, "op2-no": 0.51},
	}
	return a, b
}

func newScanner(t *testing.T, a, b collectors.Source, cfg config.Scan) *Scanner {
	t.Helper()
	s, err := New(cfg, a, b,
		WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }),
		WithRunID(func() string { return "run-1" }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestScanFindsBinaryArb(t *testing.T) {
	a, b := fixture()
	res, err := newScanner(t, a, b, scanConfig()).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(res.Opportunities) != 1 {
		t.Fatalf("got %d opportunities, want 1: %+v", len(res.Opportunities), res.Opportunities)
	}
	o := res.Opportunities[0]
	if o.Title != "Will it rain in London tomorrow?" || o.Kind != models.StrategyBinary {
		t.Errorf("opportunity = %+v", o)
	}
	if o.ROIPct < 4.999 || o.ROIPct > 5.001 {
		t.Errorf("ROI = %v, want 5", o.ROIPct)
	}
	if o.VenueIDs.A != "pm1" || o.VenueIDs.B != "op1" {
		t.Errorf("venue ids = %+v", o.VenueIDs)
	}

	d := res.Diagnostics
	if d.PairsMatched != 2 || d.BinaryPairs != 2 {
		t.Errorf("pairs = %d (binary %d), want 2", d.PairsMatched, d.BinaryPairs)
	}
	if d.MarketsFetched[collectors.VenuePolymarket] != 3 || d.MarketsKept[collectors.VenuePolymarket] != 2 {
		t.Errorf("polymarket fetched/kept = %d/%d", d.MarketsFetched[collectors.VenuePolymarket], d.MarketsKept[collectors.VenuePolymarket])
	}
	if d.BooksRequested != 8 {
		t.Errorf("BooksRequested = %d, want 8", d.BooksRequested)
	}
	// pm2/op2: 0.50+0.51 and 0.49+0.52 both cost 1.01.
	if d.Skips[arb.SkipNoEdge] != 1 {
		t.Errorf("skips = %v", d.Skips)
	}
	if d.Partial {
		t.Error("scan should not be partial")
	}
	if res.RunID != "run-1" {
		t.Errorf("RunID = %q", res.RunID)
	}
}

func TestScanIsDeterministic(t *testing.T) {
	a, b := fixture()
	s := newScanner(t, a, b, scanConfig())
	first, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Opportunities, second.Opportunities) {
		t.Errorf("rescans differ:\n%+v\n%+v", first.Opportunities, second.Opportunities)
	}
}

func TestScanBookFailuresAreCounted(t *testing.T) {
	a, b := fixture()
	b.errs = map[string]error{"op1-no": collectors.ErrTransient}

	res, err := newScanner(t, a, b, scanConfig()).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Opportunities) != 0 {
		t.Errorf("want no opportunities, got %+v", res.Opportunities)
	}
	if got := res.Diagnostics.BookFailures[workers.FailureTransient]; got != 1 {
		t.Errorf("transient failures = %d, want 1", got)
	}
	// The B-Yes + A-No path is still evaluated: 0.55+0.62 has no edge.
	if got := res.Diagnostics.Skips[arb.SkipNoEdge]; got != 2 {
		t.Errorf("no_edge skips = %d, want 2", got)
	}
}

func TestScanOneVenueDown(t *testing.T) {
	a, b := fixture()
	b.listErr = errors.New("boom")

	res, err := newScanner(t, a, b, scanConfig()).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Diagnostics.Partial {
		t.Error("expected partial scan")
	}
	if res.Diagnostics.ListErrors[collectors.VenueOpinion] == "" {
		t.Error("expected opinion list error")
	}
	if res.Diagnostics.PairsMatched != 0 || len(res.Opportunities) != 0 {
		t.Errorf("unexpected output: %+v", res.Diagnostics)
	}
}

func TestScanBothVenuesDown(t *testing.T) {
	a, b := fixture()
	a.listErr = errors.New("a down")
	b.listErr = errors.New("b down")

	_, err := newScanner(t, a, b, scanConfig()).Scan(context.Background())
	if !errors.Is(err, ErrNoMarkets) {
		t.Fatalf("err = %v, want ErrNoMarkets", err)
	}
}

func TestScanDeadlineGivesPartialResult(t *testing.T) {
	a, b := fixture()
	b.block = map[string]bool{"op2-yes": true}
	cfg := scanConfig()
	cfg.Timeout = 50 * time.Millisecond

	res, err := newScanner(t, a, b, cfg).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Diagnostics.Partial {
		t.Error("expected partial scan")
	}
	if got := res.Diagnostics.BookFailures[workers.FailureCanceled]; got != 1 {
		t.Errorf("canceled failures = %d, want 1", got)
	}
	if len(res.Opportunities) != 1 {
		t.Errorf("completed pair should still report, got %d opportunities", len(res.Opportunities))
	}
}

type countingObserver struct {
	nopObserver
	opportunities int
	finished      bool
}

func (c *countingObserver) OpportunityFound(string, float64) { c.opportunities++ }
func (c *countingObserver) ScanFinished(time.Duration, bool) { c.finished = true }

func TestScanNotifiesObserver(t *testing.T) {
	a, b := fixture()
	obs := &countingObserver{}
	s, err := New(scanConfig(), a, b, WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if obs.opportunities != 1 || !obs.finished {
		t.Errorf("observer = %+v", obs)
	}
}

func TestNewRejectsBadFeeModel(t *testing.T) {
	a, b := fixture()
	cfg := scanConfig()
	cfg.FeeModelPerVenue = map[string]string{"opinion": "bogus"}
	if _, err := New(cfg, a, b); err == nil {
		t.Fatal("expected error")
	}
}
