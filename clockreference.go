package tsdemux

import "time"

// ClockReference is a 42-bit MPEG clock sample: a 33-bit, 90kHz base and a
// 9-bit, 27MHz extension. PCR and OPCR use both fields; PTS and DTS only
// ever populate Base, since they're encoded at 90kHz alone.
type ClockReference struct {
	Base      int64
	Extension int64
}

func newClockReference(base, extension int64) *ClockReference {
	return &ClockReference{Base: base, Extension: extension}
}

// Ticks returns the clock reference in 27MHz ticks.
func (c *ClockReference) Ticks() int64 {
	return c.Base*300 + c.Extension
}

// Duration returns the clock reference as a time.Duration since its own
// zero point.
func (c *ClockReference) Duration() time.Duration {
	return time.Duration(c.Ticks() * 1000 / 27)
}

// Time returns the clock reference expressed as a wall-clock time relative
// to the Unix epoch.
func (c *ClockReference) Time() time.Time {
	return time.Unix(0, 0).Add(c.Duration())
}
