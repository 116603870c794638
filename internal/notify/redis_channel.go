package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/sensor"
)

const (
	DefaultRedisChannel = "framegate:notifications"
	DefaultRedisHistory = "framegate:notifications:history"
)

// RedisChannel publishes notifications as JSON and keeps a capped history list
type RedisChannel struct {
	client      redis.UniversalClient
	channel     string
	historyKey  string
	historySize int64
	logger      logger.Logger
}

// NewRedisChannel creates a redis channel. An empty historyKey disables the history list.
func NewRedisChannel(client redis.UniversalClient, channel, historyKey string, historySize int, log logger.Logger) *RedisChannel {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if historySize <= 0 {
		historySize = 100
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RedisChannel{
		client:      client,
		channel:     channel,
		historyKey:  historyKey,
		historySize: int64(historySize),
		logger:      log.WithField("channel", "redis"),
	}
}

func (c *RedisChannel) Name() string { return "redis" }

// Send publishes n and appends it to the history list in one transaction
func (c *RedisChannel) Send(ctx context.Context, n sensor.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Publish(ctx, c.channel, data)
	if c.historyKey != "" {
		pipe.LPush(ctx, c.historyKey, data)
		pipe.LTrim(ctx, c.historyKey, 0, c.historySize-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// History returns up to limit stored notifications, newest first
func (c *RedisChannel) History(ctx context.Context, limit int) ([]sensor.Notification, error) {
	if c.historyKey == "" {
		return nil, nil
	}
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}

	raw, err := c.client.LRange(ctx, c.historyKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notification history: %w", err)
	}

	out := make([]sensor.Notification, 0, len(raw))
	for _, item := range raw {
		var n sensor.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			c.logger.WithError(err).Warn("Skipping malformed notification in history")
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
