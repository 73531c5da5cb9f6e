package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/arbscan/internal/models"
)

// OpportunityRecord captures the last reported state of an opportunity.
type OpportunityRecord struct {
	ROIPct        float64   `json:"roi_pct"`
	TotalCost     float64   `json:"total_cost"`
	TradeableUSDC float64   `json:"tradeable_usdc"`
	Strategy      string    `json:"strategy"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OpportunityCache stores the last reported opportunity per key so repeat
// scans can suppress alerts that did not change.
type OpportunityCache interface {
	Get(ctx context.Context, key string) (*OpportunityRecord, bool, error)
	Set(ctx context.Context, key string, record OpportunityRecord) error
	Close() error
}

type redisOpportunityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisOpportunityCache builds a cache keyed by Opportunity.Key.
func NewRedisOpportunityCache(addr, password string, db int, ttl time.Duration, prefix string) (OpportunityCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if prefix == "" {
		prefix = "arbscan_seen"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisOpportunityCache{client: client, ttl: ttl, prefix: prefix}, nil
}

// Ping checks the connection.
func Ping(ctx context.Context, c OpportunityCache) error {
	rc, ok := c.(*redisOpportunityCache)
	if !ok || rc.client == nil {
		return nil
	}
	return rc.client.Ping(ctx).Err()
}

func (c *redisOpportunityCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *redisOpportunityCache) Get(ctx context.Context, key string) (*OpportunityRecord, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record OpportunityRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *redisOpportunityCache) Set(ctx context.Context, key string, record OpportunityRecord) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), payload, c.ttl).Err()
}

func (c *redisOpportunityCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// FilterFresh returns the opportunities worth alerting on: ones not seen
// before, or whose ROI improved by at least minImprovementPct points since
// the last report. Every returned opportunity is recorded. A cache error
// fails open and lets the opportunity through.
func FilterFresh(ctx context.Context, c OpportunityCache, ops []models.Opportunity, minImprovementPct float64, now time.Time) ([]models.Opportunity, error) {
	if c == nil {
		return ops, nil
	}
	var (
		fresh    []models.Opportunity
		firstErr error
	)
	for _, o := range ops {
		key := o.Key()
		prev, ok, err := c.Get(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("cache get %s: %w", key, err)
			}
			fresh = append(fresh, o)
			continue
		}
		if ok && o.ROIPct < prev.ROIPct+minImprovementPct {
			continue
		}
		fresh = append(fresh, o)
		rec := OpportunityRecord{
			ROIPct:        o.ROIPct,
			TotalCost:     o.TotalCost,
			TradeableUSDC: o.TradeableUSDC,
			Strategy:      o.Strategy,
			UpdatedAt:     now.UTC(),
		}
		if err := c.Set(ctx, key, rec); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cache set %s: %w", key, err)
		}
	}
	return fresh, firstErr
}
