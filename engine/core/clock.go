package core

import (
	"time"

	"github.com/loov/hrtime"
)

// TickSource returns monotonic time since an arbitrary origin.
type TickSource interface {
	Now() time.Duration
}

type hrtimeSource struct{}

func (hrtimeSource) Now() time.Duration {
	return hrtime.Now()
}

type Clock struct {
	source    TickSource
	startTime time.Duration
	elapsed   time.Duration
	running   bool
}

func NewClock() *Clock {
	return NewClockWithSource(hrtimeSource{})
}

func NewClockWithSource(source TickSource) *Clock {
	return &Clock{source: source}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = c.source.Now() - c.startTime
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.source.Now()
	c.elapsed = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns the seconds between Start and the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}

func (c *Clock) ElapsedDuration() time.Duration {
	return c.elapsed
}
