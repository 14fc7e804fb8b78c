package drive

// Compensator balances the two wheels during straight-line travel.
//
// Once per window it compares the tick counts of both wheels. When they
// differ by more than one tick both commands are nudged by Gain, signed
// by the drive direction. Corrections accumulate across windows until
// the wheels agree again.
type Compensator struct {
	Gain     int
	MinPulse int
	MaxPulse int
}

// Apply updates cmd in place and returns the sides whose corrected
// command fell outside [MinPulse, MaxPulse] and was clamped.
// Nothing happens while rotating in place.
func (c Compensator) Apply(dir Direction, ticks PerSide[uint32], cmd *PerSide[int]) []Side {
	if !dir.Translating() || c.Gain == 0 {
		return nil
	}

	l, r := int64(ticks[Left]), int64(ticks[Right])
	nudge := int(dir) * c.Gain
	switch {
	case l-r > 1:
		cmd[Left] += nudge
		cmd[Right] -= nudge
	case r-l > 1:
		cmd[Left] -= nudge
		cmd[Right] += nudge
	default:
		return nil
	}

	var clamped []Side
	for _, s := range Sides {
		if v := c.clamp(cmd[s]); v != cmd[s] {
			cmd[s] = v
			clamped = append(clamped, s)
		}
	}
	return clamped
}

func (c Compensator) clamp(v int) int {
	if c.MinPulse == 0 && c.MaxPulse == 0 {
		return v
	}
	return min(max(v, c.MinPulse), c.MaxPulse)
}
