package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.MarketsListed("polymarket", 120, 100)
	r.MarketsDropped("polymarket", "missing_title", 3)
	r.MarketsDropped("polymarket", "missing_title", 2)
	r.PairsMatched(7)
	r.BookFailed("transient")
	r.PairSkipped("binary", "no_edge")
	r.OpportunityFound("binary", 2.5)
	r.OpportunityFound("binary", 4.0)
	r.OpportunityFound("binary", 3.0)
	r.ScanFinished(3*time.Second, false)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"markets fetched", testutil.ToFloat64(r.marketsFetched.WithLabelValues("polymarket")), 120},
		{"markets kept", testutil.ToFloat64(r.marketsKept.WithLabelValues("polymarket")), 100},
		{"dropped", testutil.ToFloat64(r.marketsDropped.WithLabelValues("polymarket", "missing_title")), 5},
		{"pairs", testutil.ToFloat64(r.pairsMatched), 7},
		{"book failures", testutil.ToFloat64(r.bookFailures.WithLabelValues("transient")), 1},
		{"skips", testutil.ToFloat64(r.skips.WithLabelValues("binary", "no_edge")), 1},
		{"opportunities", testutil.ToFloat64(r.opportunities.WithLabelValues("binary")), 3},
		{"best roi", testutil.ToFloat64(r.bestROI.WithLabelValues("binary")), 4.0},
		{"scans", testutil.ToFloat64(r.scans.WithLabelValues("false")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	r.PairsMatched(2)
	r.OpportunityFound("binary", 1.5)
	if got := testutil.ToFloat64(r.bestROI.WithLabelValues("binary")); got != 1.5 {
		t.Errorf("best roi after new scan = %v, want 1.5", got)
	}
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.PairsMatched(3)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg) }()

	var body string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		body = string(b)
		break
	}
	if !strings.Contains(body, "arbscan_pairs_matched 3") {
		t.Errorf("metrics body missing pairs gauge:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
