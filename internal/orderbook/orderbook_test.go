package orderbook

import (
	"errors"
	"math"
	"testing"

	"github.com/hetulpatel/arbscan/internal/collectors"
)

func lv(price, size float64) collectors.RawLevel {
	return collectors.RawLevel{Price: price, Size: size}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		book     collectors.RawBook
		opts     Options
		bestBid  float64
		bestAsk  float64
		bidDepth float64
		askDepth float64
	}{
		{
			name:     "unsorted levels",
			book:     collectors.RawBook{Bids: []collectors.RawLevel{lv(0.40, 10), lv(0.45, 10)}, Asks: []collectors.RawLevel{lv(0.60, 10), lv(0.50, 10)}},
			opts:     DefaultOptions(),
			bestBid:  0.45,
			bestAsk:  0.50,
			bidDepth: 8.5,
			askDepth: 11,
		},
		{
			name:     "cap partially consumes crossing level",
			book:     collectors.RawBook{Bids: []collectors.RawLevel{lv(0.40, 100)}, Asks: []collectors.RawLevel{lv(0.50, 1000), lv(0.60, 1000)}},
			opts:     Options{MaxDepthUSDC: 700, Levels: 20},
			bestBid:  0.40,
			bestAsk:  0.50,
			bidDepth: 40,
			askDepth: 700,
		},
		{
			name:     "level window",
			book:     collectors.RawBook{Bids: []collectors.RawLevel{lv(0.1, 10)}, Asks: []collectors.RawLevel{lv(0.5, 10), lv(0.6, 10), lv(0.7, 10)}},
			opts:     Options{MaxDepthUSDC: 1000, Levels: 2},
			bestBid:  0.1,
			bestAsk:  0.5,
			bidDepth: 1,
			askDepth: 11,
		},
		{
			name:     "invalid levels ignored",
			book:     collectors.RawBook{Bids: []collectors.RawLevel{lv(0, 10), lv(0.3, -1), lv(0.2, 5)}, Asks: []collectors.RawLevel{lv(0.6, 0), lv(0.7, 10)}},
			opts:     DefaultOptions(),
			bestBid:  0.2,
			bestAsk:  0.7,
			bidDepth: 1,
			askDepth: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Aggregate(tt.book, tt.opts)
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			if !approx(snap.BestBid, tt.bestBid) || !approx(snap.BestAsk, tt.bestAsk) {
				t.Fatalf("best = %v/%v, want %v/%v", snap.BestBid, snap.BestAsk, tt.bestBid, tt.bestAsk)
			}
			if !approx(snap.BidDepthUSDC, tt.bidDepth) || !approx(snap.AskDepthUSDC, tt.askDepth) {
				t.Fatalf("depth = %v/%v, want %v/%v", snap.BidDepthUSDC, snap.AskDepthUSDC, tt.bidDepth, tt.askDepth)
			}
		})
	}
}

func TestAggregateCentsBook(t *testing.T) {
	book := collectors.RawBook{
		TokenID: "k",
		Bids:    []collectors.RawLevel{lv(40, 100), lv(38, 100)},
		Asks:    []collectors.RawLevel{lv(45, 100)},
	}
	snap, err := Aggregate(book, DefaultOptions())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !approx(snap.BestBid, 0.40) || !approx(snap.BestAsk, 0.45) {
		t.Fatalf("best = %v/%v", snap.BestBid, snap.BestAsk)
	}
	if !approx(snap.BidDepthUSDC, 78) || !approx(snap.AskDepthUSDC, 45) {
		t.Fatalf("depth = %v/%v", snap.BidDepthUSDC, snap.AskDepthUSDC)
	}
}

func TestAggregateCrossedBook(t *testing.T) {
	book := collectors.RawBook{
		Bids: []collectors.RawLevel{lv(0.60, 10)},
		Asks: []collectors.RawLevel{lv(0.55, 10)},
	}
	if _, err := Aggregate(book, DefaultOptions()); !errors.Is(err, ErrCrossedBook) {
		t.Fatalf("err = %v, want ErrCrossedBook", err)
	}
}

func TestAggregateEmptySide(t *testing.T) {
	_, err := Aggregate(collectors.RawBook{Bids: []collectors.RawLevel{lv(0.4, 1)}}, DefaultOptions())
	if !errors.Is(err, ErrEmptyBook) {
		t.Fatalf("err = %v, want ErrEmptyBook", err)
	}
}

func TestDepthNeverExceedsCap(t *testing.T) {
	levels := []collectors.RawLevel{lv(0.9, 500), lv(0.95, 500), lv(0.99, 500)}
	for _, limit := range []float64{1, 100, 450, 1000, 5000} {
		got := Depth(levels, 20, limit)
		if got > limit+1e-9 {
			t.Fatalf("Depth(limit=%v) = %v exceeds limit", limit, got)
		}
	}
	if got := Depth(levels, 20, 5000); !approx(got, 1420) {
		t.Fatalf("uncapped depth = %v, want 1420", got)
	}
}
