package engine

import "sync/atomic"

// Sequencer hands out instantiation ids.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. Instantiation ids come from it, so
// two runs over the same input number their instantiations identically.
//
// Clock is safe for concurrent use, although the engine only calls it from
// one goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
