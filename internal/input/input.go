// Package input resolves operator intent from the keyboard and controller
// into one normalized state per control tick.
package input

// Source identifies which device produced the current input state.
type Source int

const (
	SourceNone Source = iota
	SourceKeyboard
	SourceController
)

// String returns a human-readable representation of the source.
func (s Source) String() string {
	switch s {
	case SourceKeyboard:
		return "keyboard"
	case SourceController:
		return "controller"
	default:
		return "none"
	}
}

// State is the resolved operator intent for one tick.
//
// Steering is in [-1, 1] ({-1, 0, 1} from the keyboard, deadzone-filtered
// stick position from the controller). Throttle is in {-1, 0, 1} from the
// keyboard and [0, 1] from the controller. Boost is a throttle multiplier
// that persists across ticks; see Arbiter for the per-source semantics.
type State struct {
	Steering float64
	Throttle float64
	Boost    float64
	Source   Source
}
