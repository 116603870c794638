package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:  true,
			HTTPPort: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Validator: DefaultValidatorConfig(),
		Notifications: NotificationsConfig{
			QueueSize:   16,
			HistorySize: 10,
		},
		Sensor: SensorConfig{
			Name: "sim-0",
			Profiles: []ProfileConfig{
				{Stream: "infrared", Width: 640, Height: 480, Framerate: 30},
			},
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.HTTPPort = 0 },
			wantErr: true,
			errMsg:  "invalid HTTP port",
		},
		{
			name:   "disabled server skips port check",
			mutate: func(c *Config) { c.Server = ServerConfig{Enabled: false} },
		},
		{
			name:    "same server and metrics port",
			mutate:  func(c *Config) { c.Metrics.Port = 8080 },
			wantErr: true,
			errMsg:  "ports must be different",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Validator.Threshold = 1.5 },
			wantErr: true,
			errMsg:  "threshold",
		},
		{
			name:    "unknown validation stream",
			mutate:  func(c *Config) { c.Validator.ValidationStream = "thermal" },
			wantErr: true,
			errMsg:  "validation_stream",
		},
		{
			name:    "unknown other stream policy",
			mutate:  func(c *Config) { c.Validator.OtherStreamPolicy = "buffer" },
			wantErr: true,
			errMsg:  "other_stream_policy",
		},
		{
			name:    "negative recovery delay",
			mutate:  func(c *Config) { c.Validator.StopDelay = -time.Second },
			wantErr: true,
			errMsg:  "delays",
		},
		{
			name:    "no sensor profiles",
			mutate:  func(c *Config) { c.Sensor.Profiles = nil },
			wantErr: true,
			errMsg:  "at least one profile",
		},
		{
			name: "video profile without dimensions",
			mutate: func(c *Config) {
				c.Sensor.Profiles = []ProfileConfig{{Stream: "depth", Framerate: 30}}
			},
			wantErr: true,
			errMsg:  "width and height",
		},
		{
			name: "motion profile without dimensions",
			mutate: func(c *Config) {
				c.Sensor.Profiles = append(c.Sensor.Profiles, ProfileConfig{Stream: "gyro", Framerate: 200, Motion: true})
			},
		},
		{
			name:    "corruption fraction out of range",
			mutate:  func(c *Config) { c.Sensor.Corruption = map[string]float64{"infrared": 2} },
			wantErr: true,
			errMsg:  "corruption fraction",
		},
		{
			name:    "zero notification queue",
			mutate:  func(c *Config) { c.Notifications.QueueSize = 0 },
			wantErr: true,
			errMsg:  "queue_size",
		},
		{
			name: "redis enabled without addresses",
			mutate: func(c *Config) {
				c.Redis = RedisConfig{Enabled: true, PoolSize: 10}
			},
			wantErr: true,
			errMsg:  "Redis address",
		},
		{
			name:    "rate limit without burst",
			mutate:  func(c *Config) { c.Server.RateLimit = 10 },
			wantErr: true,
			errMsg:  "rate_burst",
		},
		{
			name: "revalidate before recovery finishes",
			mutate: func(c *Config) {
				c.Pipeline = PipelineConfig{Revalidate: true, RevalidateDelay: 800 * time.Millisecond}
			},
			wantErr: true,
			errMsg:  "revalidate_delay",
		},
		{
			name: "revalidate after recovery",
			mutate: func(c *Config) {
				c.Pipeline = PipelineConfig{Revalidate: true, RevalidateDelay: 2 * time.Second}
			},
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
			errMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	tmpfile, err := os.CreateTemp("", "test-config-*.yaml")
	require.NoError(t, err)
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	configContent := `
server:
  http_port: 8081

logging:
  level: "debug"
  format: "text"

validator:
  threshold: 0.25
  other_stream_policy: "forward"

sensor:
  name: "l500-test"
  corruption:
    infrared: 0.5
`
	_, err = tmpfile.Write([]byte(configContent))
	require.NoError(t, err)
	_ = tmpfile.Close()

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 0.25, cfg.Validator.Threshold)
	assert.Equal(t, "forward", cfg.Validator.OtherStreamPolicy)
	assert.Equal(t, "infrared", cfg.Validator.ValidationStream)
	assert.Equal(t, 500*time.Millisecond, cfg.Validator.StopDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Validator.ReopenDelay)
	assert.Equal(t, "l500-test", cfg.Sensor.Name)
	assert.Equal(t, 0.5, cfg.Sensor.Corruption["infrared"])
	require.Len(t, cfg.Sensor.Profiles, 2)
	assert.Equal(t, "infrared", cfg.Sensor.Profiles[0].Stream)
	assert.Equal(t, 640, cfg.Sensor.Profiles[0].Width)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load("/nonexistent/framegate.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	tmpfile, err := os.CreateTemp("", "test-config-*.yaml")
	require.NoError(t, err)
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()
	_, err = tmpfile.Write([]byte("logging:\n  level: info\n"))
	require.NoError(t, err)
	_ = tmpfile.Close()

	t.Setenv("FRAMEGATE_VALIDATOR_THRESHOLD", "0.3")

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Validator.Threshold)
}
