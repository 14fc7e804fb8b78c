package drive

import "time"

// EncoderChannel is the edge detector and tick accumulator of one wheel.
//
// WindowTicks only grows inside a sampling window and goes back to zero
// in the same step that refreshes SpeedRPS. CumulativeTicks is only
// cleared by Stop.
type EncoderChannel struct {
	Edge            EdgeState
	WindowTicks     uint32
	CumulativeTicks uint64
	SpeedRPS        float64

	idleWindows int
}

// Sample feeds one raw reading through the edge detector and reports
// whether it produced a tick. A reading equal to the threshold is
// neither high nor low and never produces a tick.
func (c *EncoderChannel) Sample(raw, threshold int) bool {
	switch c.Edge {
	case ArmedFalling:
		if raw < threshold {
			c.count()
			c.Edge = ArmedRising
			return true
		}
	case ArmedRising:
		if raw > threshold {
			c.count()
			c.Edge = ArmedFalling
			return true
		}
	}
	return false
}

func (c *EncoderChannel) count() {
	c.WindowTicks++
	c.CumulativeTicks++
}

// closeWindow refreshes the speed estimate from the ticks seen during
// window, clears the window counter and returns the ticks it held.
func (c *EncoderChannel) closeWindow(ticksPerRev int, window time.Duration) uint32 {
	ticks := c.WindowTicks
	c.SpeedRPS = float64(ticks) / float64(ticksPerRev) * (float64(time.Second) / float64(window))
	c.WindowTicks = 0
	return ticks
}

func (c *EncoderChannel) reset() {
	c.WindowTicks = 0
	c.CumulativeTicks = 0
	c.SpeedRPS = 0
	c.idleWindows = 0
}
