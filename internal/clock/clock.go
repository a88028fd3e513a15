// Package clock provides the session's monotonic time base and the
// deadline-based countdowns driven by it.
package clock

import "time"

// Clock returns seconds on a monotonic time base whose origin is fixed for
// the session.
type Clock interface {
	Now() float64
}

// Mono is a Clock anchored at the moment it was created.
type Mono struct {
	origin time.Time
}

func NewMono() *Mono {
	return &Mono{origin: time.Now()}
}

func (m *Mono) Now() float64 {
	return time.Since(m.origin).Seconds()
}

// Countdown holds a deadline on a Clock's time base. It is queried as time
// remaining, never as elapsed wall-clock.
type Countdown struct {
	Deadline float64
}

// Reset moves the deadline to now + d.
func (c *Countdown) Reset(now, d float64) {
	c.Deadline = now + d
}

// Remaining may be negative once the deadline has passed.
func (c Countdown) Remaining(now float64) float64 {
	return c.Deadline - now
}

func (c Countdown) Elapsed(now float64) bool {
	return c.Remaining(now) <= 0
}
