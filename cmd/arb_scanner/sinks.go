package main

import (
	"context"
	"os"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/arbscan/internal/cache"
	"github.com/hetulpatel/arbscan/internal/config"
	"github.com/hetulpatel/arbscan/internal/kafka"
	"github.com/hetulpatel/arbscan/internal/logging"
	"github.com/hetulpatel/arbscan/internal/queue"
	"github.com/hetulpatel/arbscan/internal/report"
	"github.com/hetulpatel/arbscan/internal/scanner"
	sqlstore "github.com/hetulpatel/arbscan/internal/storage/sqlite"
)

// sinks fans a scan result out to the console, CSV, SQLite, Redis and Kafka.
// Every sink except the console is optional.
type sinks struct {
	cfg    *config.Config
	store  *sqlstore.Store
	seen   cache.OpportunityCache
	writer *segkafka.Writer
}

func openSinks(ctx context.Context, cfg *config.Config, watch bool) (*sinks, error) {
	s := &sinks{cfg: cfg}

	if cfg.SQLite.Path != "" {
		store, err := sqlstore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if err := store.CreateTables(ctx); err != nil {
			store.Close()
			return nil, err
		}
		s.store = store
	}

	if watch && cfg.Redis.Addr != "" {
		c, err := cache.NewRedisOpportunityCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, cfg.Redis.Prefix)
		if err != nil {
			s.Close()
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := cache.Ping(pingCtx, c); err != nil {
			logging.Warnf("[arb-scanner] redis ping: %v (alerts will not be deduplicated until it recovers)", err)
		}
		cancel()
		s.seen = c
	}

	if len(cfg.Kafka.Brokers) > 0 {
		brokers := kafka.Brokers(cfg.Kafka.Brokers)
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = kafka.DefaultOpportunityTopic
		}
		waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
			cancel()
			s.Close()
			return nil, err
		}
		cancel()
		ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
		if err := kafka.EnsureTopic(ensureCtx, brokers, topic); err != nil {
			logging.Errorf("[arb-scanner] ensure topic warning: %v", err)
		}
		cancelEnsure()
		s.writer = kafka.NewWriter(brokers, topic)
	}
	return s, nil
}

// Handle reports one scan. Sink failures are logged and do not stop later
// sinks.
func (s *sinks) Handle(ctx context.Context, res *scanner.Result) error {
	if err := report.PrintTable(os.Stdout, res.Opportunities, res.Summary()); err != nil {
		logging.Errorf("[arb-scanner] print: %v", err)
	}

	if path := s.cfg.Report.CSVPath; path != "" {
		if err := report.WriteCSVFile(path, res.Opportunities); err != nil {
			logging.Errorf("[arb-scanner] csv: %v", err)
		} else {
			logging.Infof("[arb-scanner] wrote %d opportunities to %s", len(res.Opportunities), path)
		}
	}

	if s.store != nil {
		rec := sqlstore.ScanRecord{
			RunID:        res.RunID,
			VenueA:       string(res.VenueA),
			VenueB:       string(res.VenueB),
			StartedAt:    res.StartedAt,
			Duration:     res.Duration,
			ThresholdPct: res.ThresholdPct,
			PairsMatched: res.Diagnostics.PairsMatched,
			BookFailures: res.Diagnostics.TotalBookFailures(),
			Partial:      res.Diagnostics.Partial,
			Diagnostics:  res.Diagnostics,
		}
		if err := s.store.InsertScan(ctx, rec, res.Opportunities); err != nil {
			logging.Errorf("[arb-scanner] sqlite: %v", err)
		}
	}

	alerts := res.Opportunities
	if s.seen != nil {
		fresh, err := cache.FilterFresh(ctx, s.seen, alerts, s.cfg.Redis.MinImprovementPct, res.StartedAt)
		if err != nil {
			logging.Warnf("[arb-scanner] redis: %v", err)
		}
		logging.Infof("[arb-scanner] %d of %d opportunities are new or improved", len(fresh), len(alerts))
		alerts = fresh
	}

	if s.writer != nil {
		if err := queue.PublishOpportunities(ctx, s.writer, res.RunID, alerts); err != nil {
			logging.Errorf("[arb-scanner] kafka: %v", err)
		}
	}
	return nil
}

func (s *sinks) Close() {
	if s.writer != nil {
		s.writer.Close()
	}
	if s.seen != nil {
		s.seen.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}
