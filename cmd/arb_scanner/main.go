package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/config"
	"github.com/hetulpatel/arbscan/internal/kalshi"
	"github.com/hetulpatel/arbscan/internal/logging"
	"github.com/hetulpatel/arbscan/internal/matcher"
	"github.com/hetulpatel/arbscan/internal/metrics"
	"github.com/hetulpatel/arbscan/internal/opinion"
	"github.com/hetulpatel/arbscan/internal/polymarket"
	"github.com/hetulpatel/arbscan/internal/scanner"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default ./arbscan.yaml if present)")
	watch := flag.Bool("watch", false, "rescan every scan.interval until interrupted")
	csvPath := flag.String("csv", "", "CSV report path (overrides report.csv_path)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[arb-scanner] config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)
	if *csvPath != "" {
		cfg.Report.CSVPath = *csvPath
	}

	venueA := polymarket.NewClient(polymarket.Config{
		BaseURL:   cfg.Polymarket.BaseURL,
		BookURL:   cfg.Polymarket.BookURL,
		PageSize:  cfg.Polymarket.PageSize,
		MaxPages:  cfg.Polymarket.MaxPages,
		Transport: transportConfig("polymarket", cfg.Polymarket.HTTP),
	})
	venueB, err := newVenueB(cfg)
	if err != nil {
		logging.Fatalf("[arb-scanner] %v", err)
	}

	opts := []scanner.Option{
		scanner.WithMatchLogger(matcher.NewLogger(matcher.ParseLogMode(cfg.Report.MatchLog), cfg.Report.MatchLogFile)),
	}
	if *watch && cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, scanner.WithObserver(metrics.New(reg)))
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				logging.Errorf("[arb-scanner] metrics server: %v", err)
			}
		}()
	}

	sc, err := scanner.New(cfg.Scan, venueA, venueB, opts...)
	if err != nil {
		logging.Fatalf("[arb-scanner] %v", err)
	}

	out, err := openSinks(ctx, cfg, *watch)
	if err != nil {
		logging.Fatalf("[arb-scanner] %v", err)
	}
	defer out.Close()

	pass := func(ctx context.Context) error {
		res, err := sc.Scan(ctx)
		if err != nil {
			return err
		}
		return out.Handle(ctx, res)
	}

	if !*watch {
		if err := pass(ctx); err != nil {
			out.Close()
			logging.Fatalf("[arb-scanner] scan failed: %v", err)
		}
		return
	}

	logging.Infof("[arb-scanner] watching %s vs %s every %s", venueA.Venue(), venueB.Venue(), cfg.Scan.Interval)
	collectors.RunLoop(ctx, "arb-scanner", cfg.Scan.Interval, pass)
}

func newVenueB(cfg *config.Config) (collectors.Source, error) {
	switch collectors.Venue(cfg.VenueB) {
	case collectors.VenueOpinion:
		return opinion.NewClient(opinion.Config{
			BaseURL:   cfg.Opinion.BaseURL,
			APIKey:    cfg.Opinion.APIKey,
			PageSize:  cfg.Opinion.PageSize,
			MaxPages:  cfg.Opinion.MaxPages,
			Transport: transportConfig("opinion", cfg.Opinion.HTTP),
		}), nil
	case collectors.VenueKalshi:
		return kalshi.NewClient(kalshi.Config{
			BaseURL:   cfg.Kalshi.BaseURL,
			PageSize:  cfg.Kalshi.PageSize,
			MaxPages:  cfg.Kalshi.MaxPages,
			Transport: transportConfig("kalshi", cfg.Kalshi.HTTP),
		}), nil
	default:
		return nil, fmt.Errorf("unknown venue_b %q", cfg.VenueB)
	}
}

func transportConfig(name string, h config.HTTPConfig) collectors.TransportConfig {
	return collectors.TransportConfig{
		Name:         name,
		Timeout:      h.Timeout,
		MaxAttempts:  h.MaxAttempts,
		MinBackoff:   h.MinBackoff,
		MaxBackoff:   h.MaxBackoff,
		RequestDelay: h.RequestDelay,
	}
}

