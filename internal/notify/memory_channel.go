package notify

import (
	"context"
	"sync"

	"github.com/zsiec/framegate/internal/sensor"
)

// MemoryChannel keeps the most recent notifications in a fixed-size ring
type MemoryChannel struct {
	mu    sync.RWMutex
	ring  []sensor.Notification
	next  int
	count int
}

// NewMemoryChannel creates a ring holding up to size notifications
func NewMemoryChannel(size int) *MemoryChannel {
	if size <= 0 {
		size = 100
	}
	return &MemoryChannel{ring: make([]sensor.Notification, size)}
}

func (c *MemoryChannel) Name() string { return "memory" }

func (c *MemoryChannel) Send(_ context.Context, n sensor.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = n
	c.next = (c.next + 1) % len(c.ring)
	if c.count < len(c.ring) {
		c.count++
	}
	return nil
}

// Recent returns up to limit notifications, newest first. limit <= 0 means all.
func (c *MemoryChannel) Recent(limit int) []sensor.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || limit > c.count {
		limit = c.count
	}
	out := make([]sensor.Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (c.next - i + len(c.ring)) % len(c.ring)
		out = append(out, c.ring[idx])
	}
	return out
}

// Len returns how many notifications are held
func (c *MemoryChannel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}
