package kalshi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/normalize"
	"github.com/hetulpatel/arbscan/internal/orderbook"
)

func testClient(url string) *Client {
	return NewClient(Config{
		BaseURL:   url,
		Transport: collectors.TransportConfig{MaxAttempts: 2, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
}

func TestListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprint(w, `{"cursor":"next","events":[
				{"event_ticker":"RAIN-26","title":"Will it rain in London tomorrow?","markets":[
					{"ticker":"RAIN-26-Y","status":"active","volume":300,"close_time":"2026-01-10T00:00:00Z"}
				]}
			]}`)
			return
		}
		fmt.Fprint(w, `{"cursor":"","events":[
			{"event_ticker":"CUP-26","title":"Who wins the cup?","markets":[
				{"ticker":"CUP-26-ARS","status":"active","yes_sub_title":"Arsenal","volume":10},
				{"ticker":"CUP-26-CHE","status":"active","rules_primary":"If Chelsea wins the cup, then the market resolves to Yes.","volume":5},
				{"ticker":"CUP-26-LIV","status":"settled","yes_sub_title":"Liverpool"}
			]}
		]}`)
	}))
	defer srv.Close()

	raws, err := testClient(srv.URL).ListMarkets(context.Background())
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	markets, stats := normalize.Markets(raws)
	if stats.Kept != 2 {
		t.Fatalf("kept %d: %+v", stats.Kept, stats)
	}

	rain := markets[0]
	if !rain.IsBinary() {
		t.Fatalf("rain kind = %s", rain.Kind)
	}
	if tok, _ := rain.Token("No"); tok != "RAIN-26-Y:no" {
		t.Errorf("No token = %q", tok)
	}
	if rain.Deadline == nil || rain.Deadline.Day() != 10 {
		t.Errorf("deadline = %v", rain.Deadline)
	}

	cup := markets[1]
	names := cup.OutcomeNames()
	if len(names) != 2 || names[0] != "Arsenal" || names[1] != "Chelsea" {
		t.Errorf("outcomes = %v", names)
	}
	if cup.VolumeUSD != 15 {
		t.Errorf("volume = %v", cup.VolumeUSD)
	}
}

func TestFetchBookDerivesAsks(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/markets/RAIN-26-Y/orderbook" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"orderbook":{"yes":[[40,100],[38,50]],"no":[[55,200]]}}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	yes, err := c.FetchBook(context.Background(), "RAIN-26-Y:yes")
	if err != nil {
		t.Fatalf("FetchBook yes: %v", err)
	}
	snap, err := orderbook.Aggregate(yes, orderbook.DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !approx(snap.BestBid, 0.40) || !approx(snap.BestAsk, 0.45) {
		t.Errorf("yes snapshot = %+v", snap)
	}

	no, err := c.FetchBook(context.Background(), "RAIN-26-Y:no")
	if err != nil {
		t.Fatalf("FetchBook no: %v", err)
	}
	if len(no.Asks) != 2 || !approx(no.Asks[0].Price, 0.60) || !approx(no.Asks[1].Price, 0.62) {
		t.Errorf("no asks = %+v", no.Asks)
	}
	if hits != 2 {
		t.Errorf("hits = %d, want 2 sequential requests", hits)
	}
}

func TestFetchBookRejectsBadToken(t *testing.T) {
	c := testClient("http://127.0.0.1:1")
	for _, tok := range []string{"RAIN", "RAIN:maybe", ":yes"} {
		if _, err := c.FetchBook(context.Background(), tok); !errors.Is(err, collectors.ErrMalformed) {
			t.Errorf("FetchBook(%q) err = %v, want ErrMalformed", tok, err)
		}
	}
}

func TestOutcomeName(t *testing.T) {
	tests := []struct {
		name string
		m    market
		want string
	}{
		{"yes sub title", market{YesSubTitle: "Arsenal", Ticker: "X-ARS"}, "Arsenal"},
		{"rules", market{RulesPrimary: "If Jane Doe becomes mayor, Yes.", Ticker: "X-JD"}, "Jane Doe"},
		{"title", market{Title: "Will John Smith be elected?", Ticker: "X-JS"}, "John Smith"},
		{"ticker suffix", market{Title: "Event", Ticker: "X-JS"}, "JS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeName("Event", &tt.m); got != tt.want {
				t.Errorf("outcomeName = %q, want %q", got, tt.want)
			}
		})
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
