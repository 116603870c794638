package config

import (
	"fmt"
	"strings"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Validator.Validate(); err != nil {
		return fmt.Errorf("validator config: %w", err)
	}

	if err := c.Notifications.Validate(); err != nil {
		return fmt.Errorf("notifications config: %w", err)
	}

	if err := c.Sensor.Validate(); err != nil {
		return fmt.Errorf("sensor config: %w", err)
	}

	if c.Pipeline.Revalidate {
		recovery := c.Validator.StopDelay + c.Validator.ReopenDelay
		if c.Pipeline.RevalidateDelay <= recovery {
			return fmt.Errorf("pipeline revalidate_delay must exceed stop_delay + reopen_delay (%s)", recovery)
		}
	}

	if c.Server.Enabled && c.Metrics.Enabled && c.Server.HTTPPort == c.Metrics.Port {
		return fmt.Errorf("server and metrics ports must be different")
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.HTTPPort < 1 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", s.HTTPPort)
	}

	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative")
	}

	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}

	if s.RateLimit > 0 && s.RateBurst <= 0 {
		return fmt.Errorf("rate_burst must be positive when rate_limit is set")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

// validStreams mirrors sensor.StreamType names; config cannot import sensor
var validStreams = map[string]bool{
	"any": true, "depth": true, "color": true, "rgb": true, "infrared": true, "ir": true,
	"fisheye": true, "gyro": true, "accel": true, "confidence": true,
}

func (v *ValidatorConfig) Validate() error {
	if v.Threshold <= 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %v", v.Threshold)
	}

	if !validStreams[strings.ToLower(v.ValidationStream)] {
		return fmt.Errorf("unknown validation_stream: %q", v.ValidationStream)
	}

	switch strings.ToLower(v.OtherStreamPolicy) {
	case "drop", "forward":
	default:
		return fmt.Errorf("other_stream_policy must be 'drop' or 'forward'")
	}

	if v.StopDelay < 0 || v.ReopenDelay < 0 {
		return fmt.Errorf("recovery delays cannot be negative")
	}

	return nil
}

func (n *NotificationsConfig) Validate() error {
	if n.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}

	if n.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive")
	}

	return nil
}

func (p *ProfileConfig) Validate() error {
	if !validStreams[strings.ToLower(p.Stream)] {
		return fmt.Errorf("unknown stream: %q", p.Stream)
	}

	if p.Framerate <= 0 {
		return fmt.Errorf("framerate must be positive")
	}

	if !p.Motion && (p.Width <= 0 || p.Height <= 0) {
		return fmt.Errorf("video profile %s needs positive width and height", p.Stream)
	}

	return nil
}

func (s *SensorConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if len(s.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}

	for i := range s.Profiles {
		if err := s.Profiles[i].Validate(); err != nil {
			return fmt.Errorf("profiles[%d]: %w", i, err)
		}
	}

	for i := range s.UserRequests {
		if err := s.UserRequests[i].Validate(); err != nil {
			return fmt.Errorf("user_requests[%d]: %w", i, err)
		}
	}

	for stream, fraction := range s.Corruption {
		if !validStreams[strings.ToLower(stream)] {
			return fmt.Errorf("corruption: unknown stream %q", stream)
		}
		if fraction < 0 || fraction > 1 {
			return fmt.Errorf("corruption fraction for %s must be in [0, 1]", stream)
		}
	}

	if s.CorruptStarts < 0 {
		return fmt.Errorf("corrupt_starts cannot be negative")
	}

	return nil
}
