package actuator

import "github.com/roverlabs/drivelog/internal/input"

// Calibration maps a normalized axis onto a servo's physical pulse band:
// an axis of ±1 lands at CenterMs ± RangeMs.
type Calibration struct {
	CenterMs float64
	RangeMs  float64
}

// Command is the pulse pair computed for one tick. It is consumed
// immediately by the output step and read once more by the frame sampler;
// it is never carried across ticks.
type Command struct {
	SteeringPulseMs float64
	ThrottlePulseMs float64
}

// Mixer scales input state into pulse widths. It is a pure function of its
// calibration: no clamping is applied, so an axis outside [-1, 1] scales to
// a pulse outside the calibrated band. Upstream is expected to hand in
// normalized values.
type Mixer struct {
	Steering Calibration
	Throttle Calibration
}

func (m Mixer) Mix(st input.State) Command {
	return Command{
		SteeringPulseMs: m.Steering.CenterMs + m.Steering.RangeMs*st.Steering,
		ThrottlePulseMs: m.Throttle.CenterMs + m.Throttle.RangeMs*st.Throttle*st.Boost,
	}
}
