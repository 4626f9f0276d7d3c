package node

import (
	"sync"
	"time"
)

// Clock is the animation time base. A follower slews it to the leader's SYNC
// time.
type Clock struct {
	mu     sync.Mutex
	now    func() time.Time
	start  time.Time
	offset time.Duration
}

func NewClock() *Clock { return NewClockFunc(time.Now) }

// NewClockFunc builds a clock over an arbitrary time source.
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now, start: now()}
}

func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.start) + c.offset
}

func (c *Clock) Seconds() float64 { return c.Elapsed().Seconds() }

// Millis wraps after about 49 days, like the wire field.
func (c *Clock) Millis() uint32 { return uint32(c.Elapsed().Milliseconds()) }

// SyncTo moves the clock so that it reads ms now and returns the correction.
func (c *Clock) SyncTo(ms uint32) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	local := c.now().Sub(c.start) + c.offset
	delta := time.Duration(ms)*time.Millisecond - local
	c.offset += delta
	return delta
}
