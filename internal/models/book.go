package models

import "github.com/hetulpatel/arbscan/internal/collectors"

// OrderBookSnapshot is the aggregated view of one outcome token's book.
// Prices are in [0,1]; depths are USDC notionals capped at the scan ceiling.
type OrderBookSnapshot struct {
	TokenID      string  `json:"token_id"`
	BestBid      float64 `json:"best_bid"`
	BestAsk      float64 `json:"best_ask"`
	BidDepthUSDC float64 `json:"bid_depth_usdc"`
	AskDepthUSDC float64 `json:"ask_depth_usdc"`
}

// BookKey addresses a token's book on a venue.
type BookKey struct {
	Venue   collectors.Venue
	TokenID string
}

func (k BookKey) String() string {
	return string(k.Venue) + ":" + k.TokenID
}
