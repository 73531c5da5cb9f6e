package collectors

import (
	"context"
	"time"
)

// Venue identifies the platform a market/event belongs to.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueOpinion    Venue = "opinion"
	VenueKalshi     Venue = "kalshi"
)

// Source is implemented by venue clients (Polymarket, Opinion, Kalshi).
// ListMarkets walks every listing page; FetchBook returns the raw levels of a
// single outcome token exactly as the venue reports them.
type Source interface {
	Venue() Venue
	ListMarkets(ctx context.Context) ([]RawMarket, error)
	FetchBook(ctx context.Context, tokenID string) (RawBook, error)
}

// RawMarket is a venue listing record before normalization. Only one of the
// structural shapes is normally populated:
//   - YesToken/NoToken for a venue-native binary pair,
//   - OutcomeNames/TokenIDs (JSON-encoded arrays) for outcome lists,
//   - Children for events composed of one market per outcome.
type RawMarket struct {
	Venue        Venue
	ID           string
	Title        string
	YesToken     string
	NoToken      string
	OutcomeNames string
	TokenIDs     string
	Children     []RawChild
	VolumeUSD    float64
	Deadline     time.Time
}

// RawChild is one child market of a categorical event.
type RawChild struct {
	Title     string
	YesToken  string
	TokenIDs  string // JSON-encoded array; the first entry is the Yes token
	VolumeUSD float64
}

// RawBook stores the unsorted levels for one outcome token.
type RawBook struct {
	TokenID string
	Bids    []RawLevel
	Asks    []RawLevel
}

// RawLevel is a single price/size pair. Some venues report prices in cents.
type RawLevel struct {
	Price float64
	Size  float64
}
