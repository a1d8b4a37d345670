package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medreports/backend/internal/metrics"
	"github.com/medreports/backend/pkg/logger"
)

// Client caches the latest confidence score per report. Search results and
// LLM output are deliberately not cached.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func scoreKey(reportID string) string {
	return fmt.Sprintf("confidence:%s", reportID)
}

func (c *Client) SetConfidenceScore(ctx context.Context, reportID string, score interface{}) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal confidence score: %w", err)
	}

	if err := c.client.Set(ctx, scoreKey(reportID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache confidence score: %w", err)
	}

	logger.Debug("Confidence score cached", zap.String("report_id", reportID))
	return nil
}

func (c *Client) GetConfidenceScore(ctx context.Context, reportID string, score interface{}) (bool, error) {
	data, err := c.client.Get(ctx, scoreKey(reportID)).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("confidence").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cached confidence score: %w", err)
	}

	if err := json.Unmarshal(data, score); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached confidence score: %w", err)
	}

	metrics.CacheHits.WithLabelValues("confidence").Inc()
	logger.Debug("Confidence score cache hit", zap.String("report_id", reportID))
	return true, nil
}

func (c *Client) InvalidateConfidenceScore(ctx context.Context, reportID string) error {
	return c.client.Del(ctx, scoreKey(reportID)).Err()
}
