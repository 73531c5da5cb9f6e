// Package orderbook turns raw venue levels into capped depth snapshots.
package orderbook

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/models"
)

var (
	// ErrEmptyBook is returned when either side has no usable level.
	ErrEmptyBook = errors.New("orderbook: empty side")
	// ErrCrossedBook is returned when the best bid is above the best ask.
	ErrCrossedBook = errors.New("orderbook: crossed book")
)

const (
	DefaultMaxDepthUSDC = 1000.0
	DefaultLevels       = 20
)

// Options bound the depth walk.
type Options struct {
	MaxDepthUSDC float64
	Levels       int
}

// DefaultOptions returns the 1000 USDC cap over the top 20 levels.
func DefaultOptions() Options {
	return Options{MaxDepthUSDC: DefaultMaxDepthUSDC, Levels: DefaultLevels}
}

// Aggregate builds a snapshot from an unsorted raw book. Levels with a
// non-positive price or size are ignored. If any price is above 1 the whole
// book is treated as quoted in cents.
func Aggregate(book collectors.RawBook, opts Options) (models.OrderBookSnapshot, error) {
	if opts.MaxDepthUSDC <= 0 {
		opts.MaxDepthUSDC = DefaultMaxDepthUSDC
	}
	if opts.Levels <= 0 {
		opts.Levels = DefaultLevels
	}

	scale := Scale(book)
	bids := usable(book.Bids, scale)
	asks := usable(book.Asks, scale)
	if len(bids) == 0 || len(asks) == 0 {
		return models.OrderBookSnapshot{}, fmt.Errorf("%w: token %s (%d bids, %d asks)", ErrEmptyBook, book.TokenID, len(bids), len(asks))
	}

	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	snap := models.OrderBookSnapshot{
		TokenID:      book.TokenID,
		BestBid:      bids[0].Price,
		BestAsk:      asks[0].Price,
		BidDepthUSDC: Depth(bids, opts.Levels, opts.MaxDepthUSDC),
		AskDepthUSDC: Depth(asks, opts.Levels, opts.MaxDepthUSDC),
	}
	if snap.BestBid > snap.BestAsk {
		return models.OrderBookSnapshot{}, fmt.Errorf("%w: token %s bid %.4f > ask %.4f", ErrCrossedBook, book.TokenID, snap.BestBid, snap.BestAsk)
	}
	return snap, nil
}

// Scale returns 100 when the book is quoted in cents and 1 otherwise.
func Scale(book collectors.RawBook) float64 {
	for _, side := range [][]collectors.RawLevel{book.Bids, book.Asks} {
		for _, lvl := range side {
			if lvl.Price > 1 {
				return 100
			}
		}
	}
	return 1
}

// Depth sums price*size over the first n levels of a best-first side,
// stopping at maxUSDC and consuming only part of the level that crosses it.
func Depth(levels []collectors.RawLevel, n int, maxUSDC float64) float64 {
	var depth float64
	for i, lvl := range levels {
		if i >= n {
			break
		}
		contrib := lvl.Price * lvl.Size
		if depth+contrib > maxUSDC {
			return maxUSDC
		}
		depth += contrib
	}
	return depth
}

func usable(levels []collectors.RawLevel, scale float64) []collectors.RawLevel {
	out := make([]collectors.RawLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Price <= 0 || lvl.Size <= 0 {
			continue
		}
		out = append(out, collectors.RawLevel{Price: lvl.Price / scale, Size: lvl.Size})
	}
	return out
}
