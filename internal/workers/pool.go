package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/logging"
	"github.com/hetulpatel/arbscan/internal/models"
	"github.com/hetulpatel/arbscan/internal/orderbook"
)

const DefaultWorkers = 16

// BookResult is the outcome of one book fetch: a snapshot or an error.
type BookResult struct {
	Key      models.BookKey
	Snapshot models.OrderBookSnapshot
	Err      error
}

func (r BookResult) OK() bool { return r.Err == nil }

// ErrUnknownVenue is returned for keys whose venue has no source.
var ErrUnknownVenue = errors.New("no source for venue")

// Failure kinds reported by FailureKind.
const (
	FailureTransient = "transient"
	FailureMalformed = "malformed"
	FailureNotFound  = "not_found"
	FailureEmpty     = "empty_book"
	FailureCrossed   = "crossed_book"
	FailureCanceled  = "canceled"
	FailureNoSource  = "no_source"
	FailureOther     = "other"
)

// FailureKind buckets a fetch error for diagnostics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.Is(err, orderbook.ErrEmptyBook):
		return FailureEmpty
	case errors.Is(err, orderbook.ErrCrossedBook):
		return FailureCrossed
	case errors.Is(err, collectors.ErrNotFound):
		return FailureNotFound
	case errors.Is(err, collectors.ErrMalformed):
		return FailureMalformed
	case errors.Is(err, collectors.ErrTransient):
		return FailureTransient
	case errors.Is(err, ErrUnknownVenue):
		return FailureNoSource
	default:
		return FailureOther
	}
}

// BookFetcher fetches and aggregates order books with bounded concurrency.
type BookFetcher struct {
	sources map[collectors.Venue]collectors.Source
	opts    orderbook.Options
	workers int
}

func NewBookFetcher(sources []collectors.Source, opts orderbook.Options, workerCount int) *BookFetcher {
	if workerCount <= 0 {
		workerCount = DefaultWorkers
	}
	bySource := make(map[collectors.Venue]collectors.Source, len(sources))
	for _, s := range sources {
		bySource[s.Venue()] = s
	}
	return &BookFetcher{sources: bySource, opts: opts, workers: workerCount}
}

// FetchAll resolves every key. Failures never abort siblings: each key gets
// its own BookResult. Duplicate keys are fetched once.
func (f *BookFetcher) FetchAll(ctx context.Context, keys []models.BookKey) map[models.BookKey]BookResult {
	results := make(map[models.BookKey]BookResult, len(keys))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(f.workers)
	seen := make(map[models.BookKey]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		g.Go(func() error {
			res := f.fetch(ctx, key)
			if res.Err != nil {
				logging.Debugf("[workers] book %s: %v", key, res.Err)
			}
			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (f *BookFetcher) fetch(ctx context.Context, key models.BookKey) BookResult {
	res := BookResult{Key: key}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	src, ok := f.sources[key.Venue]
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownVenue, key.Venue)
		return res
	}
	raw, err := src.FetchBook(ctx, key.TokenID)
	if err != nil {
		res.Err = fmt.Errorf("fetch %s: %w", key, err)
		return res
	}
	if raw.TokenID == "" {
		raw.TokenID = key.TokenID
	}
	snap, err := orderbook.Aggregate(raw, f.opts)
	if err != nil {
		res.Err = err
		return res
	}
	res.Snapshot = snap
	return res
}
