package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/arbscan/internal/models"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OpportunityEvent is the JSON value published for each opportunity.
type OpportunityEvent struct {
	RunID       string             `json:"run_id"`
	Rank        int                `json:"rank"`
	PublishedAt time.Time          `json:"published_at"`
	Opportunity models.Opportunity `json:"opportunity"`
}

// PublishOpportunities writes one message per opportunity, keyed by
// Opportunity.Key, in rank order.
func PublishOpportunities(ctx context.Context, writer MessageWriter, runID string, ops []models.Opportunity) error {
	if writer == nil || len(ops) == 0 {
		return nil
	}

	published := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(ops))
	for i, o := range ops {
		payload, err := json.Marshal(OpportunityEvent{
			RunID:       runID,
			Rank:        i + 1,
			PublishedAt: published,
			Opportunity: o,
		})
		if err != nil {
			return fmt.Errorf("marshal opportunity %s: %w", o.PairID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(o.Key()),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
				{Key: "strategy_kind", Value: []byte(o.Kind)},
			},
		})
	}
	return writer.WriteMessages(ctx, msgs...)
}

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Consume decodes messages until ctx ends or the reader fails. Messages that
// do not decode are passed to handle with a non-nil error.
func Consume(ctx context.Context, reader MessageReader, handle func(OpportunityEvent, error)) error {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		var ev OpportunityEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			handle(ev, fmt.Errorf("decode %s: %w", string(msg.Key), err))
			continue
		}
		handle(ev, nil)
	}
}
