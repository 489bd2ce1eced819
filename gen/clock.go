package gen

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Clock maps simulated time onto wall-clock time.
//
// With Scale > 0 the generator is throttled so one simulated second takes
// 1/Scale wall seconds. With Scale == 0 the clock is free-running and events
// are emitted as fast as the pipeline drains them. Only the scheduler
// advances the clock; everything else reads timestamps off emitted events.
type Clock struct {
	Start time.Time
	Scale float64

	limiter *rate.Limiter
	last    time.Time
}

// NewClock creates a clock starting at start. A scale <= 0 disables
// wall-clock pacing.
func NewClock(start time.Time, scale float64) *Clock {
	c := &Clock{Start: start.UTC(), Scale: scale, last: start.UTC()}
	if scale > 0 {
		// One token per simulated millisecond, refilled at scale×real time.
		c.limiter = rate.NewLimiter(rate.Limit(scale*1000), int(scale*1000)+1)
	}
	return c
}

// Pace blocks until wall time has caught up with the simulated instant t.
// Free-running clocks return immediately.
func (c *Clock) Pace(ctx context.Context, t time.Time) error {
	if c.limiter == nil {
		return nil
	}
	delta := t.Sub(c.last)
	if delta <= 0 {
		return nil
	}
	c.last = t
	ms := int(delta.Milliseconds())
	if ms <= 0 {
		return nil
	}
	// WaitN caps n at the burst size; consume in chunks for large jumps.
	burst := c.limiter.Burst()
	for ms > 0 {
		n := ms
		if n > burst {
			n = burst
		}
		if err := c.limiter.WaitN(ctx, n); err != nil {
			return err
		}
		ms -= n
	}
	return nil
}
