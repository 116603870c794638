package pipeline

import (
	"fmt"

	"github.com/zsiec/framegate/internal/config"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/sensor"
	"github.com/zsiec/framegate/internal/sensor/sim"
)

// ProfilesFromConfig converts configured stream profiles
func ProfilesFromConfig(cfgs []config.ProfileConfig) ([]sensor.StreamProfile, error) {
	profiles := make([]sensor.StreamProfile, 0, len(cfgs))
	for i, c := range cfgs {
		stream, err := sensor.ParseStreamType(c.Stream)
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		if c.Motion {
			profiles = append(profiles, sensor.NewMotionProfile(stream, c.Framerate))
			continue
		}
		profiles = append(profiles, sensor.NewVideoProfile(stream, c.Width, c.Height, c.Framerate))
	}
	return profiles, nil
}

// NewSimSensor builds the simulated sensor described by cfg
func NewSimSensor(cfg config.SensorConfig, log logger.Logger) (*sim.Sensor, error) {
	s := sim.New(cfg.Name,
		sim.WithLogger(log),
		sim.WithPool(sensor.NewFramePool(cfg.PoolSize, log)),
	)

	for name, fraction := range cfg.Corruption {
		stream, err := sensor.ParseStreamType(name)
		if err != nil {
			return nil, fmt.Errorf("corruption: %w", err)
		}
		s.SetCorruption(stream, fraction)
	}
	if cfg.CorruptStarts > 0 {
		s.CorruptNextStarts(cfg.CorruptStarts)
	}
	return s, nil
}
