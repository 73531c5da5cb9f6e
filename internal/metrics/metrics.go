// Package metrics exports scan diagnostics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hetulpatel/arbscan/internal/logging"
)

const namespace = "arbscan"

// Recorder implements scanner.Observer on top of Prometheus collectors.
type Recorder struct {
	marketsFetched *prometheus.GaugeVec
	marketsKept    *prometheus.GaugeVec
	marketsDropped *prometheus.CounterVec
	listFailures   *prometheus.CounterVec
	pairsMatched   prometheus.Gauge
	bookFailures   *prometheus.CounterVec
	skips          *prometheus.CounterVec
	opportunities  *prometheus.CounterVec
	bestROI        *prometheus.GaugeVec
	scans          *prometheus.CounterVec
	scanDuration   prometheus.Histogram

	mu   sync.Mutex
	best map[string]float64
}

// New registers the scanner collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		best: make(map[string]float64),
		marketsFetched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "markets_fetched",
			Help: "Raw markets listed per venue in the last scan.",
		}, []string{"venue"}),
		marketsKept: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "markets_kept",
			Help: "Markets kept after normalization per venue in the last scan.",
		}, []string{"venue"}),
		marketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "markets_dropped_total",
			Help: "Raw markets dropped during normalization.",
		}, []string{"venue", "reason"}),
		listFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "list_failures_total",
			Help: "Venue listings that failed.",
		}, []string{"venue"}),
		pairsMatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pairs_matched",
			Help: "Cross-venue pairs matched in the last scan.",
		}),
		bookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "book_failures_total",
			Help: "Order book fetches that failed, by kind.",
		}, []string{"kind"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pairs_skipped_total",
			Help: "Strategy evaluations skipped, by reason.",
		}, []string{"strategy", "reason"}),
		opportunities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "opportunities_total",
			Help: "Opportunities found, by strategy kind.",
		}, []string{"kind"}),
		bestROI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_roi_pct",
			Help: "Highest ROI seen in the last scan, by strategy kind.",
		}, []string{"kind"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scans_total",
			Help: "Completed scans.",
		}, []string{"partial"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "scan_duration_seconds",
			Help:    "Wall time of a scan.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(
		r.marketsFetched, r.marketsKept, r.marketsDropped, r.listFailures,
		r.pairsMatched, r.bookFailures, r.skips, r.opportunities,
		r.bestROI, r.scans, r.scanDuration,
	)
	return r
}

func (r *Recorder) MarketsListed(venue string, fetched, kept int) {
	r.marketsFetched.WithLabelValues(venue).Set(float64(fetched))
	r.marketsKept.WithLabelValues(venue).Set(float64(kept))
}

func (r *Recorder) MarketsDropped(venue, reason string, n int) {
	r.marketsDropped.WithLabelValues(venue, reason).Add(float64(n))
}

func (r *Recorder) ListFailed(venue string) {
	r.listFailures.WithLabelValues(venue).Inc()
	r.marketsFetched.WithLabelValues(venue).Set(0)
	r.marketsKept.WithLabelValues(venue).Set(0)
}

// PairsMatched also marks the start of evaluation, so the per-kind best ROI
// is reset here.
func (r *Recorder) PairsMatched(n int) {
	r.pairsMatched.Set(float64(n))
	r.mu.Lock()
	r.best = make(map[string]float64)
	r.bestROI.Reset()
	r.mu.Unlock()
}

func (r *Recorder) BookFailed(kind string) {
	r.bookFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) PairSkipped(strategy, reason string) {
	r.skips.WithLabelValues(strategy, reason).Inc()
}

func (r *Recorder) OpportunityFound(kind string, roiPct float64) {
	r.opportunities.WithLabelValues(kind).Inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.best[kind]; !ok || roiPct > cur {
		r.best[kind] = roiPct
		r.bestROI.WithLabelValues(kind).Set(roiPct)
	}
}

func (r *Recorder) ScanFinished(d time.Duration, partial bool) {
	label := "false"
	if partial {
		label = "true"
	}
	r.scans.WithLabelValues(label).Inc()
	r.scanDuration.Observe(d.Seconds())
}

// Serve exposes /metrics for gatherer on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Infof("[metrics] serving metrics at %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
