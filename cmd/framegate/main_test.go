package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/framegate/internal/config"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/sensor"
)

func testConfig(redisAddr string) *config.Config {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled:     true,
			Addresses:   []string{redisAddr},
			DialTimeout: time.Second,
			PoolSize:    2,
		},
		Validator: config.DefaultValidatorConfig(),
		Notifications: config.NotificationsConfig{
			QueueSize:    8,
			HistorySize:  10,
			RedisChannel: "framegate:notifications",
			RedisHistory: "framegate:notifications:history",
		},
		Sensor: config.SensorConfig{
			Name: "sim-it",
			Profiles: []config.ProfileConfig{
				{Stream: "infrared", Width: 16, Height: 16, Framerate: 100},
				{Stream: "depth", Width: 16, Height: 16, Framerate: 100},
			},
			UserRequests: []config.ProfileConfig{
				{Stream: "depth", Width: 16, Height: 16, Framerate: 100},
			},
			Corruption:    map[string]float64{"infrared": 0.4},
			CorruptStarts: 1,
			PoolSize:      4,
		},
	}
	cfg.Validator.StopDelay = 10 * time.Millisecond
	cfg.Validator.ReopenDelay = 10 * time.Millisecond
	return cfg
}

// A corrupted first start is detected, recovered from and archived in Redis
func TestRun_CorruptionIsArchived(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logger.NewNullLogger()) }()

	key := cfg.Notifications.RedisHistory
	require.Eventually(t, func() bool {
		if !mr.Exists(key) {
			return false
		}
		items, err := mr.List(key)
		return err == nil && len(items) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	items, err := mr.List(key)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var n sensor.Notification
	require.NoError(t, json.Unmarshal([]byte(items[0]), &n))
	assert.Equal(t, sensor.CategoryFrameCorrupted, n.Category)
	assert.Equal(t, sensor.SeverityWarn, n.Severity)
}

func TestRun_RedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg := testConfig(mr.Addr())
	mr.Close()

	cfg.Redis.DialTimeout = 200 * time.Millisecond
	err = run(context.Background(), cfg, logger.NewNullLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis")
}
