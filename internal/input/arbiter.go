package input

import (
	"log"

	"github.com/roverlabs/drivelog/internal/hid"
)

// Options configures an Arbiter.
type Options struct {
	Deadzone     float64
	BoostForward float64
	BoostReverse float64
}

// Arbiter resolves one input State per tick with a fixed priority: keyboard
// when any key is held, otherwise the controller when one is tracked,
// otherwise neutral. It also owns controller hot-plug and the one-shot
// record toggle.
type Arbiter struct {
	hid  hid.Subsystem
	opts Options

	edges   *EdgeTracker
	tracked bool

	// boost persists until overwritten by a later tick, matching the
	// original rig: the keyboard boost key re-arms it every tick it is
	// held and nothing else clears it; the controller pad writes it on
	// press and leaves it on release.
	boost float64
}

func NewArbiter(h hid.Subsystem, opts Options) *Arbiter {
	return &Arbiter{
		hid:   h,
		opts:  opts,
		edges: NewEdgeTracker(),
	}
}

// ControllerTracked reports whether a controller is currently acquired.
func (a *Arbiter) ControllerTracked() bool { return a.tracked }

// HandleHotplug reconciles the tracked controller with the device nodes
// present this tick. It runs before arbitration so a controller plugged in
// moments ago is usable on the same tick.
func (a *Arbiter) HandleHotplug() {
	if !a.hid.ControllerAvailable() {
		if a.tracked {
			a.hid.DropController()
			a.tracked = false
			log.Println("input: controller disconnected, waiting for reconnection")
		}
		return
	}
	if !a.tracked {
		if err := a.hid.AcquireController(); err != nil {
			log.Printf("input: controller acquire failed: %v", err)
			return
		}
		a.tracked = true
		log.Println("input: controller connected")
	}
}

// Arbitrate produces the input state for this tick and reports whether the
// record toggle fired.
func (a *Arbiter) Arbitrate() (State, bool) {
	// Observe both record controls every tick so the edge trackers see
	// releases regardless of which source wins arbitration.
	toggle := a.edges.Rising("key:record", a.hid.KeyDown(hid.KeyRecord))
	if a.tracked {
		if a.edges.Rising("btn:record", a.hid.Button(hid.BtnRecord)) {
			toggle = true
		}
	}

	var st State
	switch {
	case a.hid.AnyKeyDown():
		st = a.keyboardState()
	case a.tracked:
		st = a.controllerState()
	default:
		st.Source = SourceNone
	}
	st.Boost = a.boost
	return st, toggle
}

func (a *Arbiter) keyboardState() State {
	st := State{Source: SourceKeyboard}
	if a.hid.KeyDown(hid.KeyLeft) {
		st.Steering--
	}
	if a.hid.KeyDown(hid.KeyRight) {
		st.Steering++
	}
	if a.hid.KeyDown(hid.KeyDown) {
		st.Throttle--
	}
	if a.hid.KeyDown(hid.KeyUp) {
		st.Throttle++
	}
	if a.hid.KeyDown(hid.KeyBoost) {
		a.boost = a.opts.BoostForward
	}
	return st
}

func (a *Arbiter) controllerState() State {
	st := State{Source: SourceController}
	st.Steering = applyDeadzone(a.hid.Axis(hid.AxisSteering), a.opts.Deadzone)
	// Remap the trigger axis from [-1, 1] to [0, 1].
	st.Throttle = a.hid.Axis(hid.AxisThrottle)/2 + 0.5

	hx, hy := a.hid.Hat()
	switch {
	case hy == -1: // evdev hats report up as -1
		a.boost = a.opts.BoostForward
	case hy == 1:
		a.boost = a.opts.BoostReverse
	case hx != 0:
		a.boost = 0
	}
	return st
}

// applyDeadzone snaps small stick excursions to zero. Values at or beyond
// the threshold pass through unchanged.
func applyDeadzone(value, deadzone float64) float64 {
	if value < deadzone && value > -deadzone {
		return 0
	}
	return value
}
