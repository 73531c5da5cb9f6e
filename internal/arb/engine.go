package arb

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/exclusivity"
	"github.com/hetulpatel/arbscan/internal/fees"
	"github.com/hetulpatel/arbscan/internal/models"
	"github.com/hetulpatel/arbscan/internal/normalize"
	"github.com/hetulpatel/arbscan/internal/similarity"
)

const (
	DefaultThresholdPct          = 1.0
	DefaultOutcomeMatchThreshold = 70
	DefaultMaxDepthUSDC          = 1000.0
	DefaultFeeNotionalUSD        = 100.0

	epsilon = 1e-9
)

type Config struct {
	ThresholdPct          float64
	OutcomeMatchThreshold int
	MaxDepthUSDC          float64
	FeeNotionalUSD        float64
	Fees                  map[collectors.Venue]fees.Model
	Classifier            *exclusivity.Classifier
	Scorer                similarity.Scorer
	// Now anchors time-to-expiry so a scan reports the same days throughout.
	Now time.Time
}

// SkipReason explains why a strategy produced no opportunity for a pair.
type SkipReason string

const (
	SkipMissingBook     SkipReason = "missing_book"
	SkipNotExclusive    SkipReason = "not_exclusive"
	SkipTooFewOutcomes  SkipReason = "too_few_outcomes"
	SkipNoEdge          SkipReason = "no_edge"
	SkipBelowThreshold  SkipReason = "below_threshold"
	SkipIncompleteMatch SkipReason = "incomplete_outcome_match"
	SkipSingleVenue     SkipReason = "single_venue_assembly"
	SkipPanic           SkipReason = "evaluation_panic"
)

type Skip struct {
	Strategy models.StrategyKind
	Reason   SkipReason
	Detail   string
}

type Result struct {
	Opportunities []models.Opportunity
	Skips         []Skip
}

// Books gives the evaluator the snapshots fetched for a scan.
type Books interface {
	Book(key models.BookKey) (models.OrderBookSnapshot, bool)
}

// BookMap is the simplest Books implementation.
type BookMap map[models.BookKey]models.OrderBookSnapshot

func (m BookMap) Book(key models.BookKey) (models.OrderBookSnapshot, bool) {
	snap, ok := m[key]
	return snap, ok
}

// Plan records which books a pair needs. Exclusivity is decided before any
// book is fetched, so pairs that cannot host a strategy cost no requests.
type Plan struct {
	Pair     models.MatchedPair
	Binary   bool
	VerdictA exclusivity.Verdict
	VerdictB exclusivity.Verdict
	Keys     []models.BookKey
}

type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	if cfg.ThresholdPct < 0 {
		cfg.ThresholdPct = DefaultThresholdPct
	}
	if cfg.OutcomeMatchThreshold <= 0 {
		cfg.OutcomeMatchThreshold = DefaultOutcomeMatchThreshold
	}
	if cfg.MaxDepthUSDC <= 0 {
		cfg.MaxDepthUSDC = DefaultMaxDepthUSDC
	}
	if cfg.FeeNotionalUSD <= 0 {
		cfg.FeeNotionalUSD = DefaultFeeNotionalUSD
	}
	if cfg.Classifier == nil {
		cfg.Classifier = exclusivity.NewClassifier()
	}
	if cfg.Scorer == nil {
		cfg.Scorer = similarity.TokenSet
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	return &Evaluator{cfg: cfg}
}

// Plan decides the strategy branch for a pair and the book keys it needs.
func (e *Evaluator) Plan(pair models.MatchedPair) Plan {
	p := Plan{Pair: pair}
	if pair.A.IsBinary() && pair.B.IsBinary() {
		p.Binary = true
		p.Keys = append(keysFor(pair.A), keysFor(pair.B)...)
		return p
	}
	p.VerdictA = e.cfg.Classifier.Classify(pair.A.OutcomeNames())
	p.VerdictB = e.cfg.Classifier.Classify(pair.B.OutcomeNames())
	if p.VerdictA.Exclusive {
		p.Keys = append(p.Keys, keysFor(pair.A)...)
	}
	if p.VerdictB.Exclusive {
		p.Keys = append(p.Keys, keysFor(pair.B)...)
	}
	return p
}

// Evaluate runs every applicable strategy for a planned pair. A panic in
// one pair is reported as a skip instead of escaping.
func (e *Evaluator) Evaluate(plan Plan, books Books) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Skips: []Skip{{Reason: SkipPanic, Detail: fmt.Sprint(r)}}}
		}
	}()

	if plan.Binary {
		e.collect(&res, models.StrategyBinary, func() (*models.Opportunity, *Skip) {
			return e.binary(plan.Pair, books)
		})
		return res
	}

	if !plan.VerdictA.Exclusive && !plan.VerdictB.Exclusive {
		res.Skips = append(res.Skips, Skip{
			Strategy: models.StrategyMultiOutcome,
			Reason:   SkipNotExclusive,
			Detail:   fmt.Sprintf("%s: %s; %s: %s", plan.Pair.A.Venue, plan.VerdictA.Reason, plan.Pair.B.Venue, plan.VerdictB.Reason),
		})
		return res
	}

	pair := plan.Pair
	e.collect(&res, models.StrategyMultiOutcome, func() (*models.Opportunity, *Skip) {
		return e.surebet(pair, pair.A, plan.VerdictA, books, pair.A.Deadline)
	})
	e.collect(&res, models.StrategyMultiOutcome, func() (*models.Opportunity, *Skip) {
		return e.surebet(pair, pair.B, plan.VerdictB, books, pair.B.Deadline)
	})
	e.collect(&res, models.StrategyMultiOutcomeCross, func() (*models.Opportunity, *Skip) {
		return e.crossVenue(plan, books)
	})
	return res
}

func (e *Evaluator) collect(res *Result, kind models.StrategyKind, run func() (*models.Opportunity, *Skip)) {
	opp, skip := run()
	if skip != nil {
		skip.Strategy = kind
		res.Skips = append(res.Skips, *skip)
		return
	}
	if opp != nil {
		res.Opportunities = append(res.Opportunities, *opp)
	}
}

type legSpec struct {
	market  models.Market
	outcome string
}

// binary evaluates A-Yes + B-No and B-Yes + A-No and keeps the path with
// the higher fee-adjusted ROI. A path with a missing book is not viable.
func (e *Evaluator) binary(pair models.MatchedPair, books Books) (*models.Opportunity, *Skip) {
	paths := [][2]legSpec{
		{{pair.A, "Yes"}, {pair.B, "No"}},
		{{pair.B, "Yes"}, {pair.A, "No"}},
	}

	var best *models.Opportunity
	var missing []string
	for _, path := range paths {
		legs := make([]models.Leg, 0, 2)
		for _, spec := range path {
			leg, ok := e.leg(spec.market, spec.outcome, books)
			if !ok {
				missing = append(missing, fmt.Sprintf("%s %s", spec.market.Venue, spec.outcome))
				break
			}
			legs = append(legs, leg)
		}
		if len(legs) != len(path) {
			continue
		}

		depth := math.Min(legs[0].DepthUSDC, legs[1].DepthUSDC)
		feeNotional := math.Min(depth, e.cfg.FeeNotionalUSD)
		for i := range legs {
			legs[i].Fee = e.fee(legs[i].Venue, legs[i].Ask, feeNotional*legs[i].Ask)
		}
		opp := e.opportunity(pair, models.StrategyBinary, legs, math.Min(depth, e.cfg.MaxDepthUSDC))
		opp.Strategy = fmt.Sprintf("Buy %s %s + Buy %s %s", venueLabel(legs[0].Venue), legs[0].Outcome, venueLabel(legs[1].Venue), legs[1].Outcome)
		opp.Prices = legPrices(legs)
		opp.TimeToExpiryDays = e.expiry(pair.A.Deadline, pair.B.Deadline)
		if best == nil || opp.ROIPct > best.ROIPct {
			best = &opp
		}
	}

	if best == nil {
		return nil, &Skip{Reason: SkipMissingBook, Detail: strings.Join(missing, ", ")}
	}
	return e.gate(best)
}

// surebet buys every outcome of one venue's market.
func (e *Evaluator) surebet(pair models.MatchedPair, m models.Market, verdict exclusivity.Verdict, books Books, deadline *time.Time) (*models.Opportunity, *Skip) {
	if !verdict.Exclusive {
		return nil, &Skip{Reason: SkipNotExclusive, Detail: fmt.Sprintf("%s: %s", m.Venue, verdict.Reason)}
	}
	if len(m.Outcomes) < 2 {
		return nil, &Skip{Reason: SkipTooFewOutcomes, Detail: string(m.Venue)}
	}

	legs, missing := e.allLegs(m, books)
	if missing != "" {
		return nil, &Skip{Reason: SkipMissingBook, Detail: fmt.Sprintf("%s %s", m.Venue, missing)}
	}
	tradeable := e.cfg.MaxDepthUSDC
	for i := range legs {
		legs[i].Fee = e.fee(legs[i].Venue, legs[i].Ask, legs[i].DepthUSDC*legs[i].Ask)
		tradeable = math.Min(tradeable, legs[i].DepthUSDC)
	}

	opp := e.opportunity(pair, models.StrategyMultiOutcome, legs, tradeable)
	var asks, feeSum float64
	for _, l := range legs {
		asks += l.Ask
		feeSum += l.Fee
	}
	opp.Strategy = fmt.Sprintf("Buy all %d outcomes on %s", len(legs), venueLabel(m.Venue))
	opp.Prices = fmt.Sprintf("sum_asks=%.4f,fees=%.4f", asks, feeSum)
	opp.TimeToExpiryDays = e.expiry(deadline)
	return e.gate(&opp)
}

// crossVenue rebuilds venue A's outcome partition from the cheaper
// fee-adjusted ask of each outcome across both venues.
func (e *Evaluator) crossVenue(plan Plan, books Books) (*models.Opportunity, *Skip) {
	pair := plan.Pair
	if !plan.VerdictA.Exclusive || !plan.VerdictB.Exclusive {
		return nil, &Skip{Reason: SkipNotExclusive, Detail: "cross-venue assembly needs both venues exclusive"}
	}
	if len(pair.A.Outcomes) < 2 || len(pair.B.Outcomes) < 2 {
		return nil, &Skip{Reason: SkipTooFewOutcomes}
	}
	legsA, missing := e.allLegs(pair.A, books)
	if missing != "" {
		return nil, &Skip{Reason: SkipMissingBook, Detail: fmt.Sprintf("%s %s", pair.A.Venue, missing)}
	}
	legsB, missing := e.allLegs(pair.B, books)
	if missing != "" {
		return nil, &Skip{Reason: SkipMissingBook, Detail: fmt.Sprintf("%s %s", pair.B.Venue, missing)}
	}

	unclaimed := make([]int, len(legsB))
	for i := range legsB {
		unclaimed[i] = i
	}
	names := make([]string, 0, len(legsB))

	chosen := make([]models.Leg, 0, len(legsA))
	used := make(map[collectors.Venue]bool)
	tradeable := e.cfg.MaxDepthUSDC
	for _, a := range legsA {
		names = names[:0]
		for _, idx := range unclaimed {
			names = append(names, normalize.Title(legsB[idx].Outcome))
		}
		best, ok := similarity.BestMatch(normalize.Title(a.Outcome), names, e.cfg.Scorer)
		if !ok || best.Score < e.cfg.OutcomeMatchThreshold {
			return nil, &Skip{Reason: SkipIncompleteMatch, Detail: fmt.Sprintf("no %s outcome for %q", pair.B.Venue, a.Outcome)}
		}
		b := legsB[unclaimed[best.Index]]
		unclaimed = append(unclaimed[:best.Index], unclaimed[best.Index+1:]...)

		a.Fee = e.fee(a.Venue, a.Ask, math.Min(a.DepthUSDC, e.cfg.MaxDepthUSDC)*a.Ask)
		b.Fee = e.fee(b.Venue, b.Ask, math.Min(b.DepthUSDC, e.cfg.MaxDepthUSDC)*b.Ask)
		leg := a
		if b.Ask+b.Fee < a.Ask+a.Fee {
			leg = b
		}
		used[leg.Venue] = true
		tradeable = math.Min(tradeable, leg.DepthUSDC)
		chosen = append(chosen, leg)
	}
	if len(used) < 2 {
		return nil, &Skip{Reason: SkipSingleVenue, Detail: "every cheapest leg came from one venue"}
	}

	opp := e.opportunity(pair, models.StrategyMultiOutcomeCross, chosen, tradeable)
	counts := make(map[collectors.Venue]int)
	for _, l := range chosen {
		counts[l.Venue]++
	}
	opp.Strategy = fmt.Sprintf("Cross-venue: %d outcomes (%d %s, %d %s)", len(chosen),
		counts[pair.A.Venue], venueLabel(pair.A.Venue), counts[pair.B.Venue], venueLabel(pair.B.Venue))
	opp.Prices = crossPrices(chosen)
	opp.TimeToExpiryDays = e.expiry(pair.A.Deadline, pair.B.Deadline)
	return e.gate(&opp)
}

// gate applies the cost and threshold checks shared by every strategy.
func (e *Evaluator) gate(opp *models.Opportunity) (*models.Opportunity, *Skip) {
	if opp.TotalCost >= 1 {
		return nil, &Skip{Reason: SkipNoEdge, Detail: fmt.Sprintf("cost %.4f", opp.TotalCost)}
	}
	if opp.ROIPct+epsilon < e.cfg.ThresholdPct {
		return nil, &Skip{Reason: SkipBelowThreshold, Detail: fmt.Sprintf("roi %.2f%%", opp.ROIPct)}
	}
	return opp, nil
}

func (e *Evaluator) opportunity(pair models.MatchedPair, kind models.StrategyKind, legs []models.Leg, tradeable float64) models.Opportunity {
	var asks, cost float64
	for _, l := range legs {
		asks += l.Ask
		cost += l.Ask + l.Fee
	}
	return models.Opportunity{
		PairID:           pair.ID(),
		Title:            pair.A.Title,
		Kind:             kind,
		ROIPct:           (1 - cost) * 100,
		ROIBeforeFeesPct: (1 - asks) * 100,
		TotalCost:        cost,
		TradeableUSDC:    tradeable,
		VenueIDs: models.VenueIDs{
			VenueA: pair.A.Venue,
			A:      pair.A.EventID,
			VenueB: pair.B.Venue,
			B:      pair.B.EventID,
		},
		MatchScore: pair.MatchScore,
		Legs:       legs,
	}
}

func (e *Evaluator) leg(m models.Market, outcome string, books Books) (models.Leg, bool) {
	token, ok := m.Token(outcome)
	if !ok {
		return models.Leg{}, false
	}
	snap, ok := books.Book(models.BookKey{Venue: m.Venue, TokenID: token})
	if !ok || snap.BestAsk <= 0 {
		return models.Leg{}, false
	}
	return models.Leg{
		Venue:     m.Venue,
		Outcome:   outcome,
		TokenID:   token,
		Ask:       snap.BestAsk,
		DepthUSDC: snap.AskDepthUSDC,
	}, true
}

// allLegs returns one leg per outcome, or the first outcome lacking a book.
func (e *Evaluator) allLegs(m models.Market, books Books) ([]models.Leg, string) {
	legs := make([]models.Leg, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		leg, ok := e.leg(m, o.Name, books)
		if !ok {
			return nil, o.Name
		}
		legs = append(legs, leg)
	}
	return legs, ""
}

func (e *Evaluator) fee(venue collectors.Venue, price, notional float64) float64 {
	model, ok := e.cfg.Fees[venue]
	if !ok || model == nil {
		return 0
	}
	return model.Fraction(price, notional)
}

// expiry returns whole days until the first known deadline, never negative.
func (e *Evaluator) expiry(deadlines ...*time.Time) *int {
	for _, d := range deadlines {
		if d == nil || d.IsZero() {
			continue
		}
		days := int(math.Floor(d.Sub(e.cfg.Now).Hours() / 24))
		if days < 0 {
			days = 0
		}
		return &days
	}
	return nil
}

func keysFor(m models.Market) []models.BookKey {
	keys := make([]models.BookKey, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		keys = append(keys, models.BookKey{Venue: m.Venue, TokenID: o.TokenID})
	}
	return keys
}

func venueLabel(v collectors.Venue) string {
	s := string(v)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func legPrices(legs []models.Leg) string {
	parts := make([]string, 0, len(legs)+1)
	var feeSum float64
	for _, l := range legs {
		parts = append(parts, fmt.Sprintf("%s_%s=%.4f", l.Venue, strings.ToLower(l.Outcome), l.Ask))
		feeSum += l.Fee
	}
	parts = append(parts, fmt.Sprintf("fees=%.4f", feeSum))
	return strings.Join(parts, ",")
}

func crossPrices(legs []models.Leg) string {
	const shown = 3
	parts := make([]string, 0, shown)
	for i, l := range legs {
		if i == shown {
			break
		}
		parts = append(parts, fmt.Sprintf("%s@%s=%.4f", truncate(l.Outcome, 15), l.Venue, l.Ask+l.Fee))
	}
	out := strings.Join(parts, ", ")
	if len(legs) > shown {
		out += fmt.Sprintf(" ... +%d more", len(legs)-shown)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
