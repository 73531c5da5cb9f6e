// Package scanner runs one end-to-end arbitrage scan: list both venues,
// normalize, match, fetch books, evaluate and rank.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/arbscan/internal/arb"
	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/config"
	"github.com/hetulpatel/arbscan/internal/exclusivity"
	"github.com/hetulpatel/arbscan/internal/fees"
	"github.com/hetulpatel/arbscan/internal/logging"
	"github.com/hetulpatel/arbscan/internal/matcher"
	"github.com/hetulpatel/arbscan/internal/models"
	"github.com/hetulpatel/arbscan/internal/normalize"
	"github.com/hetulpatel/arbscan/internal/orderbook"
	"github.com/hetulpatel/arbscan/internal/report"
	"github.com/hetulpatel/arbscan/internal/workers"
)

// ErrNoMarkets is returned when neither venue could be listed.
var ErrNoMarkets = errors.New("no venue could be listed")

// Observer receives scan counters. metrics.Recorder implements it.
type Observer interface {
	MarketsListed(venue string, fetched, kept int)
	MarketsDropped(venue, reason string, n int)
	ListFailed(venue string)
	PairsMatched(n int)
	BookFailed(kind string)
	PairSkipped(strategy, reason string)
	OpportunityFound(kind string, roiPct float64)
	ScanFinished(duration time.Duration, partial bool)
}

type nopObserver struct{}

func (nopObserver) MarketsListed(string, int, int) {}
func (nopObserver) MarketsDropped(string, string, int) {}
func (nopObserver) ListFailed(string) {}
func (nopObserver) PairsMatched(int) {}
func (nopObserver) BookFailed(string) {}
func (nopObserver) PairSkipped(string, string) {}
func (nopObserver) OpportunityFound(string, float64) {}
func (nopObserver) ScanFinished(time.Duration, bool) {}

// Diagnostics counts what happened during a scan.
type Diagnostics struct {
	MarketsFetched map[collectors.Venue]int
	MarketsKept    map[collectors.Venue]int
	MarketsDropped map[collectors.Venue]map[normalize.DropReason]int
	ListErrors     map[collectors.Venue]string
	PairsMatched   int
	BinaryPairs    int
	MultiPairs     int
	BooksRequested int
	BookFailures   map[string]int
	Skips          map[arb.SkipReason]int
	Opportunities  map[models.StrategyKind]int
	// Partial is set when a venue listing failed or the scan deadline cut
	// book fetching short.
	Partial bool
}

func newDiagnostics() Diagnostics {
	return Diagnostics{
		MarketsFetched: make(map[collectors.Venue]int),
		MarketsKept:    make(map[collectors.Venue]int),
		MarketsDropped: make(map[collectors.Venue]map[normalize.DropReason]int),
		ListErrors:     make(map[collectors.Venue]string),
		BookFailures:   make(map[string]int),
		Skips:          make(map[arb.SkipReason]int),
		Opportunities:  make(map[models.StrategyKind]int),
	}
}

// TotalBookFailures sums BookFailures over all kinds.
func (d Diagnostics) TotalBookFailures() int {
	n := 0
	for _, c := range d.BookFailures {
		n += c
	}
	return n
}

// TotalSkips sums Skips over all reasons.
func (d Diagnostics) TotalSkips() int {
	n := 0
	for _, c := range d.Skips {
		n += c
	}
	return n
}

// Result is the outcome of one scan. Opportunities are ranked.
type Result struct {
	RunID         string
	VenueA        collectors.Venue
	VenueB        collectors.Venue
	StartedAt     time.Time
	Duration      time.Duration
	ThresholdPct  float64
	Opportunities []models.Opportunity
	Diagnostics   Diagnostics
}

// Summary condenses the diagnostics for report.PrintTable.
func (r *Result) Summary() report.Summary {
	return report.Summary{
		ThresholdPct: r.ThresholdPct,
		MarketsA:     r.Diagnostics.MarketsKept[r.VenueA],
		MarketsB:     r.Diagnostics.MarketsKept[r.VenueB],
		PairsMatched: r.Diagnostics.PairsMatched,
		BookFailures: r.Diagnostics.TotalBookFailures(),
		PairsSkipped: r.Diagnostics.TotalSkips(),
	}
}

type Option func(*Scanner)

func WithObserver(o Observer) Option {
	return func(s *Scanner) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock overrides the time source used for time-to-expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func WithMatchLogger(l *matcher.Logger) Option {
	return func(s *Scanner) { s.matchLog = l }
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(s *Scanner) { s.runID = fn }
}

// Scanner compares venue A (Polymarket) against venue B.
type Scanner struct {
	cfg      config.Scan
	a, b     collectors.Source
	fees     map[collectors.Venue]fees.Model
	observer Observer
	now      func() time.Time
	matchLog *matcher.Logger
	runID    func() string
}

func New(cfg config.Scan, a, b collectors.Source, opts ...Option) (*Scanner, error) {
	if a == nil || b == nil {
		return nil, errors.New("scanner needs two sources")
	}
	feeModels, err := cfg.FeeModels()
	if err != nil {
		return nil, err
	}
	s := &Scanner{
		cfg:      cfg,
		a:        a,
		b:        b,
		fees:     feeModels,
		observer: nopObserver{},
		now:      time.Now,
		runID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type listing struct {
	raws []collectors.RawMarket
	err  error
}

// Scan runs one pass. It fails only when neither venue can be listed; any
// other failure is counted in Diagnostics and the scan continues.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	started := s.now()
	clock := time.Now()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res := &Result{
		RunID:        s.runID(),
		VenueA:       s.a.Venue(),
		VenueB:       s.b.Venue(),
		StartedAt:    started,
		ThresholdPct: s.cfg.ArbThresholdPct,
		Diagnostics:  newDiagnostics(),
	}
	diag := &res.Diagnostics

	listA, listB := s.list(ctx)
	if listA.err != nil && listB.err != nil {
		return nil, fmt.Errorf("%w: %s: %v; %s: %v", ErrNoMarkets, res.VenueA, listA.err, res.VenueB, listB.err)
	}
	marketsA := s.normalize(diag, res.VenueA, listA)
	marketsB := s.normalize(diag, res.VenueB, listB)

	m := matcher.New(matcher.Config{Threshold: s.cfg.FuzzyMatchThreshold, Logger: s.matchLog})
	pairs := m.Match(marketsA, marketsB)
	diag.PairsMatched = len(pairs)
	s.observer.PairsMatched(len(pairs))
	logging.Infof("[scanner] run=%s matched %d pairs (%s=%d, %s=%d)", res.RunID, len(pairs), res.VenueA, len(marketsA), res.VenueB, len(marketsB))

	eval := arb.NewEvaluator(arb.Config{
		ThresholdPct:          s.cfg.ArbThresholdPct,
		OutcomeMatchThreshold: s.cfg.OutcomeMatchThreshold,
		MaxDepthUSDC:          s.cfg.MaxDepthUSDC,
		FeeNotionalUSD:        s.cfg.FeeNotionalUSD,
		Fees:                  s.fees,
		Classifier:            exclusivity.NewClassifier(),
		Now:                   started,
	})

	plans := make([]arb.Plan, 0, len(pairs))
	var keys []models.BookKey
	for _, pair := range pairs {
		plan := eval.Plan(pair)
		if plan.Binary {
			diag.BinaryPairs++
		} else {
			diag.MultiPairs++
		}
		plans = append(plans, plan)
		keys = append(keys, plan.Keys...)
	}

	books := s.fetchBooks(ctx, diag, keys)

	var ops []models.Opportunity
	for _, plan := range plans {
		out := eval.Evaluate(plan, books)
		for _, skip := range out.Skips {
			diag.Skips[skip.Reason]++
			s.observer.PairSkipped(string(skip.Strategy), string(skip.Reason))
			logging.Debugf("[scanner] skip %s %s %q: %s", skip.Strategy, skip.Reason, plan.Pair.A.Title, skip.Detail)
		}
		for _, o := range out.Opportunities {
			diag.Opportunities[o.Kind]++
			s.observer.OpportunityFound(string(o.Kind), o.ROIPct)
		}
		ops = append(ops, out.Opportunities...)
	}

	res.Opportunities = report.Rank(ops)
	res.Duration = time.Since(clock)
	if ctx.Err() != nil {
		diag.Partial = true
	}
	s.observer.ScanFinished(res.Duration, diag.Partial)
	logging.Infof("[scanner] run=%s done in %s: %d opportunities, %d book failures, partial=%t",
		res.RunID, res.Duration.Round(time.Millisecond), len(res.Opportunities), diag.TotalBookFailures(), diag.Partial)
	return res, nil
}

func (s *Scanner) list(ctx context.Context) (listing, listing) {
	var a, b listing
	var g errgroup.Group
	g.Go(func() error {
		a.raws, a.err = s.a.ListMarkets(ctx)
		return nil
	})
	g.Go(func() error {
		b.raws, b.err = s.b.ListMarkets(ctx)
		return nil
	})
	_ = g.Wait()
	return a, b
}

func (s *Scanner) normalize(diag *Diagnostics, venue collectors.Venue, l listing) []models.Market {
	if l.err != nil {
		logging.Errorf("[scanner] list %s: %v", venue, l.err)
		diag.ListErrors[venue] = l.err.Error()
		diag.Partial = true
		s.observer.ListFailed(string(venue))
		return nil
	}
	markets, stats := normalize.Markets(l.raws)
	diag.MarketsFetched[venue] = len(l.raws)
	diag.MarketsKept[venue] = stats.Kept
	diag.MarketsDropped[venue] = stats.Dropped
	s.observer.MarketsListed(string(venue), len(l.raws), stats.Kept)
	for reason, n := range stats.Dropped {
		s.observer.MarketsDropped(string(venue), string(reason), n)
	}
	return markets
}

func (s *Scanner) fetchBooks(ctx context.Context, diag *Diagnostics, keys []models.BookKey) arb.BookMap {
	opts := orderbook.Options{MaxDepthUSDC: s.cfg.MaxDepthUSDC, Levels: s.cfg.BookLevels}
	fetcher := workers.NewBookFetcher([]collectors.Source{s.a, s.b}, opts, s.cfg.Workers)
	results := fetcher.FetchAll(ctx, keys)
	diag.BooksRequested = len(results)

	books := make(arb.BookMap, len(results))
	for key, r := range results {
		if !r.OK() {
			kind := workers.FailureKind(r.Err)
			diag.BookFailures[kind]++
			s.observer.BookFailed(kind)
			continue
		}
		books[key] = r.Snapshot
	}
	return books
}
