package models

import (
	"testing"

	"github.com/hetulpatel/arbscan/internal/collectors"
)

func TestPairIDIsOrderIndependent(t *testing.T) {
	a := PairID(collectors.VenuePolymarket, "1", collectors.VenueOpinion, "2")
	b := PairID(collectors.VenueOpinion, "2", collectors.VenuePolymarket, "1")
	if a != b {
		t.Fatalf("PairID differs by order: %s vs %s", a, b)
	}
	if c := PairID(collectors.VenuePolymarket, "1", collectors.VenueOpinion, "3"); c == a {
		t.Fatalf("distinct pairs share id %s", a)
	}
}

func TestMarketAccessors(t *testing.T) {
	m := Market{
		Kind:     KindBinary,
		Outcomes: []Outcome{{Name: "Yes", TokenID: "y"}, {Name: "No", TokenID: "n"}},
	}
	if !m.IsBinary() {
		t.Fatal("expected binary")
	}
	if tok, ok := m.Token("No"); !ok || tok != "n" {
		t.Fatalf("Token(No) = %q, %v", tok, ok)
	}
	if _, ok := m.Token("Maybe"); ok {
		t.Fatal("unexpected token for unknown outcome")
	}
	names := m.OutcomeNames()
	if len(names) != 2 || names[0] != "Yes" || names[1] != "No" {
		t.Fatalf("OutcomeNames = %v", names)
	}
}
