package clock

import "time"

// FakeClock is a Clock frozen at an instant set by the test. It only moves
// when Advance is called, which makes deadline checks such as the 72-hour
// cancellation window deterministic.
type FakeClock struct {
	now time.Time
}

// NewFakeClock returns a FakeClock pinned to t, normalised to UTC to match
// the system clock.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

// Now returns the pinned instant.
func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
