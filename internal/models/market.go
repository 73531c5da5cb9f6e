package models

import (
	"time"

	"github.com/hetulpatel/arbscan/internal/collectors"
)

// Kind distinguishes Yes/No markets from categorical ones.
type Kind string

const (
	KindBinary       Kind = "binary"
	KindMultiOutcome Kind = "multi-outcome"
)

// Outcome names one tradeable outcome and the token its book is keyed by.
type Outcome struct {
	Name    string `json:"name"`
	TokenID string `json:"token_id"`
}

// Market is a normalized venue listing. Outcomes keep venue order.
type Market struct {
	Venue           collectors.Venue `json:"venue"`
	EventID         string           `json:"event_id"`
	Title           string           `json:"title"`
	NormalizedTitle string           `json:"normalized_title"`
	Kind            Kind             `json:"kind"`
	Outcomes        []Outcome        `json:"outcomes"`
	VolumeUSD       float64          `json:"volume_usd"`
	Deadline        *time.Time       `json:"deadline,omitempty"`
}

// OutcomeNames returns the outcome names in venue order.
func (m Market) OutcomeNames() []string {
	names := make([]string, len(m.Outcomes))
	for i, o := range m.Outcomes {
		names[i] = o.Name
	}
	return names
}

// Token returns the token id for an outcome name.
func (m Market) Token(name string) (string, bool) {
	for _, o := range m.Outcomes {
		if o.Name == name {
			return o.TokenID, true
		}
	}
	return "", false
}

// IsBinary reports whether the market is a Yes/No pair.
func (m Market) IsBinary() bool {
	return m.Kind == KindBinary && len(m.Outcomes) == 2
}

// MatchedPair is one cross-venue event pairing produced by the matcher.
type MatchedPair struct {
	A          Market `json:"a"`
	B          Market `json:"b"`
	MatchScore int    `json:"match_score"`
	MatchKind  Kind   `json:"match_kind"`
}

// ID is an order-independent identifier for the pair.
func (p MatchedPair) ID() string {
	return PairID(p.A.Venue, p.A.EventID, p.B.Venue, p.B.EventID)
}
