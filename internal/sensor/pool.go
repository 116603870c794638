package sensor

import (
	"sync"
	"sync/atomic"

	"github.com/zsiec/framegate/internal/logger"
)

// FramePool recycles frame buffers by size so producers don't allocate per frame
type FramePool struct {
	freeLists sync.Map // size -> chan []byte
	capacity  int
	logger    logger.Logger

	allocated atomic.Uint64
	reused    atomic.Uint64
	discarded atomic.Uint64
	mu        sync.Mutex
}

// PoolStats is a snapshot of pool activity
type PoolStats struct {
	Allocated uint64 `json:"allocated"`
	Reused    uint64 `json:"reused"`
	Discarded uint64 `json:"discarded"`
}

// NewFramePool creates a pool keeping at most capacity free buffers per size
func NewFramePool(capacity int, log logger.Logger) *FramePool {
	if capacity <= 0 {
		capacity = 8
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &FramePool{
		capacity: capacity,
		logger:   log.WithField("component", "frame_pool"),
	}
}

// Get returns a frame backed by a pooled buffer of the given size. The buffer
// goes back to the pool when the frame's last reference is released.
func (p *FramePool) Get(profile StreamProfile, size int, opts ...FrameOption) *Frame {
	buf := p.getBuffer(size)
	opts = append(opts, WithReleaseHook(func(f *Frame) {
		p.put(f.data)
	}))
	return NewFrame(profile, buf, opts...)
}

// Stats returns pool statistics
func (p *FramePool) Stats() PoolStats {
	return PoolStats{
		Allocated: p.allocated.Load(),
		Reused:    p.reused.Load(),
		Discarded: p.discarded.Load(),
	}
}

func (p *FramePool) freeList(size int) chan []byte {
	// Fast path: list already exists
	if fl, ok := p.freeLists.Load(size); ok {
		return fl.(chan []byte)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if fl, ok := p.freeLists.Load(size); ok {
		return fl.(chan []byte)
	}
	fl := make(chan []byte, p.capacity)
	p.freeLists.Store(size, fl)
	p.logger.WithField("size", size).Debug("Frame free list created")
	return fl
}

func (p *FramePool) getBuffer(size int) []byte {
	select {
	case buf := <-p.freeList(size):
		p.reused.Add(1)
		return buf
	default:
		p.allocated.Add(1)
		return make([]byte, size)
	}
}

func (p *FramePool) put(buf []byte) {
	if buf == nil {
		return
	}
	select {
	case p.freeList(cap(buf)) <- buf[:cap(buf)]:
	default:
		// Pool is full, let GC handle it
		p.discarded.Add(1)
	}
}
