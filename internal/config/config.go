package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Validator     ValidatorConfig     `mapstructure:"validator"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Sensor        SensorConfig        `mapstructure:"sensor"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`     // json or text
	Output     string `mapstructure:"output"`     // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"`   // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// ValidatorConfig tunes the frame validator. The defaults reproduce the
// fixed constants of the sensor firmware workaround.
type ValidatorConfig struct {
	Threshold         float64       `mapstructure:"threshold"`           // invalid pixel ratio at which a frame is corrupted
	ValidationStream  string        `mapstructure:"validation_stream"`   // stream type whose pixels are scanned
	OtherStreamPolicy string        `mapstructure:"other_stream_policy"` // drop or forward
	StopDelay         time.Duration `mapstructure:"stop_delay"`
	ReopenDelay       time.Duration `mapstructure:"reopen_delay"`
}

type NotificationsConfig struct {
	QueueSize    int    `mapstructure:"queue_size"`
	HistorySize  int    `mapstructure:"history_size"`
	RedisChannel string `mapstructure:"redis_channel"`
	RedisHistory string `mapstructure:"redis_history"`
}

type ProfileConfig struct {
	Stream    string `mapstructure:"stream"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	Framerate int    `mapstructure:"framerate"`
	Motion    bool   `mapstructure:"motion"`
}

type SensorConfig struct {
	Name          string             `mapstructure:"name"`
	Profiles      []ProfileConfig    `mapstructure:"profiles"`       // what the sensor is opened (and reopened) with
	UserRequests  []ProfileConfig    `mapstructure:"user_requests"`  // what the application asked for
	Corruption    map[string]float64 `mapstructure:"corruption"`     // stream -> fraction of zeroed pixels
	CorruptStarts int                `mapstructure:"corrupt_starts"` // starts that get corrupted, 0 for all
	PoolSize      int                `mapstructure:"pool_size"`
}

type PipelineConfig struct {
	Revalidate      bool          `mapstructure:"revalidate"`
	RevalidateDelay time.Duration `mapstructure:"revalidate_delay"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(configPath)

	// Environment variable override
	viper.SetEnvPrefix("FRAMEGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultValidatorConfig returns the validator settings used when no
// configuration file overrides them
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Threshold:         0.10,
		ValidationStream:  "infrared",
		OtherStreamPolicy: "drop",
		StopDelay:         500 * time.Millisecond,
		ReopenDelay:       500 * time.Millisecond,
	}
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.rate_limit", 50)
	viper.SetDefault("server.rate_burst", 100)
	viper.SetDefault("server.debug_endpoints", false)

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addresses", []string{"localhost:6379"})
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 1)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 5)
	viper.SetDefault("logging.max_age", 30)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 9090)

	// Validator defaults
	v := DefaultValidatorConfig()
	viper.SetDefault("validator.threshold", v.Threshold)
	viper.SetDefault("validator.validation_stream", v.ValidationStream)
	viper.SetDefault("validator.other_stream_policy", v.OtherStreamPolicy)
	viper.SetDefault("validator.stop_delay", v.StopDelay.String())
	viper.SetDefault("validator.reopen_delay", v.ReopenDelay.String())

	// Notification defaults
	viper.SetDefault("notifications.queue_size", 64)
	viper.SetDefault("notifications.history_size", 100)
	viper.SetDefault("notifications.redis_channel", "framegate:notifications")
	viper.SetDefault("notifications.redis_history", "framegate:notifications:history")

	// Sensor defaults
	viper.SetDefault("sensor.name", "sim-0")
	viper.SetDefault("sensor.profiles", []map[string]interface{}{
		{"stream": "infrared", "width": 640, "height": 480, "framerate": 30},
		{"stream": "depth", "width": 640, "height": 480, "framerate": 30},
	})
	viper.SetDefault("sensor.user_requests", []map[string]interface{}{
		{"stream": "depth", "width": 640, "height": 480, "framerate": 30},
	})
	viper.SetDefault("sensor.corrupt_starts", 0)
	viper.SetDefault("sensor.pool_size", 8)

	// Pipeline defaults
	viper.SetDefault("pipeline.revalidate", false)
	viper.SetDefault("pipeline.revalidate_delay", "2s")
}
