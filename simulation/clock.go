// Package simulation provides in-memory DisplayPort controllers and peers
// that run the protocol engine without hardware. Time is virtual: every
// delay advances a Clock instead of waiting.
package simulation

// Clock is a virtual microsecond clock. It implements regio.Timer.
type Clock struct {
	now uint64
}

// NewClock creates a clock at time zero.
func NewClock() *Clock {
	return &Clock{}
}

// DelayUs advances the clock.
func (c *Clock) DelayUs(us uint32) {
	c.now += uint64(us)
}

// Now returns the elapsed virtual time in microseconds.
func (c *Clock) Now() uint64 {
	return c.now
}
