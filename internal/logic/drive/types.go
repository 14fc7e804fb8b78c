package drive

// Side selects one of the two driven wheels.
type Side int

const (
	Left Side = iota
	Right
)

// Sides lists both wheels in sampling order.
var Sides = [...]Side{Left, Right}

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// PerSide holds one value per wheel, indexed by Side.
type PerSide[T any] [2]T

// Direction is the current drive mode. It doubles as the sign applied
// to differential corrections.
type Direction int

const (
	Reverse  Direction = -1
	Rotating Direction = 0
	Forward  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Rotating:
		return "rotating"
	default:
		return "unknown"
	}
}

// Translating reports whether the robot moves along a straight line,
// the only mode in which wheel tick counts are comparable.
func (d Direction) Translating() bool {
	return d == Forward || d == Reverse
}

// EdgeState is the arm state of an encoder edge detector.
type EdgeState int

const (
	// ArmedRising waits for the raw signal to go above the threshold.
	ArmedRising EdgeState = iota
	// ArmedFalling waits for the raw signal to drop below the threshold.
	ArmedFalling
)

func (e EdgeState) String() string {
	if e == ArmedFalling {
		return "armed-falling"
	}
	return "armed-rising"
}

// RawReader reads the raw analog intensity of a wheel encoder sensor.
type RawReader interface {
	ReadRaw(side Side) (int, error)
}

// Actuator drives a wheel with a servo pulse width in microseconds.
type Actuator interface {
	WriteSpeed(side Side, pulseUs int) error
}
