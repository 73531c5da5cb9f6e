package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/hetulpatel/arbscan/internal/config"
	"github.com/hetulpatel/arbscan/internal/kafka"
	"github.com/hetulpatel/arbscan/internal/logging"
	"github.com/hetulpatel/arbscan/internal/queue"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	group := flag.String("group", "", "consumer group (empty reads new messages only)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[opportunity-tail] config: %v", err)
	}
	brokers := kafka.Brokers(cfg.Kafka.Brokers)
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = kafka.DefaultOpportunityTopic
	}

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		cancel()
		logging.Fatalf("[opportunity-tail] wait for broker: %v", err)
	}
	cancel()

	reader := kafka.NewReader(brokers, topic, *group)
	defer reader.Close()
	logging.Infof("[opportunity-tail] reading %s from %v", topic, brokers)

	err = queue.Consume(ctx, reader, func(ev queue.OpportunityEvent, err error) {
		if err != nil {
			logging.Warnf("[opportunity-tail] skip message: %v", err)
			return
		}
		o := ev.Opportunity
		fmt.Printf("%s #%d %-10s roi=%6.2f%% cost=%.4f size=$%.2f %s\n",
			ev.RunID[:min(8, len(ev.RunID))], ev.Rank, o.Kind, o.ROIPct, o.TotalCost, o.TradeableUSDC, o.Title)
	})
	if err != nil {
		logging.Fatalf("[opportunity-tail] consume: %v", err)
	}
}
