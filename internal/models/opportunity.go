package models

import "github.com/hetulpatel/arbscan/internal/collectors"

// StrategyKind names the strategy that produced an opportunity.
type StrategyKind string

const (
	StrategyBinary            StrategyKind = "binary"
	StrategyMultiOutcome      StrategyKind = "multi-outcome"
	StrategyMultiOutcomeCross StrategyKind = "multi-outcome-cross"
)

// Leg is one buy order of an opportunity. Fee is a fraction of the leg's
// notional, added to Ask in every cost comparison.
type Leg struct {
	Venue     collectors.Venue `json:"venue"`
	Outcome   string           `json:"outcome"`
	TokenID   string           `json:"token_id"`
	Ask       float64          `json:"ask"`
	Fee       float64          `json:"fee"`
	DepthUSDC float64          `json:"depth_usdc"`
}

// VenueIDs holds the event identifiers on both venues.
type VenueIDs struct {
	VenueA collectors.Venue `json:"venue_a"`
	A      string           `json:"a"`
	VenueB collectors.Venue `json:"venue_b"`
	B      string           `json:"b"`
}

// Opportunity is a detected arbitrage with ROI at or above the threshold.
type Opportunity struct {
	PairID           string       `json:"pair_id"`
	Title            string       `json:"title"`
	Kind             StrategyKind `json:"strategy_kind"`
	ROIPct           float64      `json:"roi_pct"`
	ROIBeforeFeesPct float64      `json:"roi_before_fees_pct"`
	TotalCost        float64      `json:"total_cost"`
	TradeableUSDC    float64      `json:"tradeable_usdc"`
	Strategy         string       `json:"strategy"`
	Prices           string       `json:"prices"`
	VenueIDs         VenueIDs     `json:"venue_ids"`
	TimeToExpiryDays *int         `json:"time_to_expiry_days,omitempty"`
	MatchScore       int          `json:"match_score"`
	Legs             []Leg        `json:"legs"`
}

// Key identifies an opportunity across scans. A pair can carry a surebet on
// each venue, so single-venue strategies are keyed by their venue too.
func (o Opportunity) Key() string {
	key := o.PairID + ":" + string(o.Kind)
	if o.Kind == StrategyMultiOutcome && len(o.Legs) > 0 {
		key += ":" + string(o.Legs[0].Venue)
	}
	return key
}
