package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/sensor"
)

// CountingSink is the demo application's frame consumer. It tallies frames
// per stream and releases them.
type CountingSink struct {
	logger *logger.SampledLogger

	total   atomic.Uint64
	mu      sync.Mutex
	perType map[string]uint64
}

// NewCountingSink creates a counting sink
func NewCountingSink(log logger.Logger) *CountingSink {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &CountingSink{
		logger:  logger.NewFrameLogger(log.WithField("component", "user_sink")),
		perType: make(map[string]uint64),
	}
}

func (s *CountingSink) OnFrame(frame *sensor.Frame) error {
	defer frame.Release()

	stream := frame.Profile().StreamType().String()
	s.total.Add(1)
	s.mu.Lock()
	s.perType[stream]++
	s.mu.Unlock()

	s.logger.Sample(logrus.DebugLevel, logger.CategoryFrameDelivery, "Frame received", logger.Fields{
		"profile": frame.Profile().String(),
		"frame":   frame.Number(),
	})
	return nil
}

// Total returns the number of frames received
func (s *CountingSink) Total() uint64 {
	return s.total.Load()
}

// Count returns the number of frames received for one stream
func (s *CountingSink) Count(stream sensor.StreamType) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perType[stream.String()]
}

// Counts returns per-stream totals
func (s *CountingSink) Counts() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.perType))
	for k, v := range s.perType {
		out[k] = v
	}
	return out
}
