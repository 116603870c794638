package notify

import (
	"context"

	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/sensor"
)

// LogChannel writes notifications to the log at their severity's level
type LogChannel struct {
	logger logger.Logger
}

// NewLogChannel creates a log channel
func NewLogChannel(log logger.Logger) *LogChannel {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &LogChannel{logger: log.WithField("channel", "log")}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, n sensor.Notification) error {
	entry := c.logger.WithFields(logger.Fields{
		"notification_id": n.ID,
		"sensor":          n.Sensor,
		"category":        n.Category,
		"code":            n.Code,
		"severity":        n.Severity.String(),
	})
	if len(n.Data) > 0 {
		entry = entry.WithFields(n.Data)
	}
	entry.Log(n.Severity.LogLevel(), n.Description)
	return nil
}
