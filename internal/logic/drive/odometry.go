package drive

// Odometry integrates window tick counts into distance and in-place
// rotation since the last stop. Both totals move together, from the
// average of the two wheels.
type Odometry struct {
	MetersPerTick  float64
	DegreesPerTick float64

	DistanceM float64
	Degrees   float64
}

// Integrate adds one window of ticks.
func (o *Odometry) Integrate(ticks PerSide[uint32]) {
	avg := (float64(ticks[Left]) + float64(ticks[Right])) / 2.0
	o.DistanceM += avg * o.MetersPerTick
	o.Degrees += avg * o.DegreesPerTick
}

// Reset zeroes both totals and returns the distance they held.
func (o *Odometry) Reset() float64 {
	d := o.DistanceM
	o.DistanceM = 0
	o.Degrees = 0
	return d
}
