package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ObjectStats are the per-object counters kept in Redis.
type ObjectStats struct {
	Displays    int64 `json:"displays"`
	Completions int64 `json:"completions"`
	Successes   int64 `json:"successes"`
	WrongClicks int64 `json:"wrong_clicks"`
}

type StatsRepository struct {
	client *redis.Client
}

func NewStatsRepository(client *redis.Client) *StatsRepository {
	return &StatsRepository{client: client}
}

func statsKey(objectID string) string {
	return fmt.Sprintf("content:stats:%s", objectID)
}

func (r *StatsRepository) RecordDisplayed(ctx context.Context, objectID string) error {
	return r.client.HIncrBy(ctx, statsKey(objectID), "displays", 1).Err()
}

func (r *StatsRepository) RecordCompleted(ctx context.Context, objectID string, success bool) error {
	key := statsKey(objectID)
	if err := r.client.HIncrBy(ctx, key, "completions", 1).Err(); err != nil {
		return err
	}
	if !success {
		return nil
	}
	return r.client.HIncrBy(ctx, key, "successes", 1).Err()
}

func (r *StatsRepository) AddWrongClicks(ctx context.Context, objectID string, n int64) error {
	if n == 0 {
		return nil
	}
	return r.client.HIncrBy(ctx, statsKey(objectID), "wrong_clicks", n).Err()
}

func (r *StatsRepository) GetStats(ctx context.Context, objectID string) (*ObjectStats, error) {
	fields, err := r.client.HGetAll(ctx, statsKey(objectID)).Result()
	if err != nil {
		return nil, err
	}
	stats := &ObjectStats{}
	parse := func(field string) int64 {
		v, _ := strconv.ParseInt(fields[field], 10, 64)
		return v
	}
	stats.Displays = parse("displays")
	stats.Completions = parse("completions")
	stats.Successes = parse("successes")
	stats.WrongClicks = parse("wrong_clicks")
	return stats, nil
}

func (r *StatsRepository) HealthCheck(ctx context.Context) error {
	if _, err := r.client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
