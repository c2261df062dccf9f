// Package hid exposes the keyboard and the joystick-type controller as a
// polled, per-tick state snapshot over Linux evdev.
package hid

import "github.com/gvalkov/golang-evdev"

// Control bindings. Everything upstream refers to controls through these
// codes so the evdev dependency stays inside this package.
const (
	KeyLeft   = evdev.KEY_LEFT
	KeyRight  = evdev.KEY_RIGHT
	KeyUp     = evdev.KEY_UP
	KeyDown   = evdev.KEY_DOWN
	KeyBoost  = evdev.KEY_SPACE
	KeyRecord = evdev.KEY_R
	KeyQuit   = evdev.KEY_ESC

	AxisSteering = evdev.ABS_X
	AxisThrottle = evdev.ABS_RY
	BtnRecord    = evdev.BTN_TL
)

// Subsystem is the polled view over the human input devices. Pump and all
// accessors must only be called from the control loop; the per-device reader
// goroutines never touch the polled state directly.
type Subsystem interface {
	// Pump drains pending device and hot-plug events into the snapshot.
	Pump()
	// QuitRequested reports whether the quit key was pressed.
	QuitRequested() bool

	AnyKeyDown() bool
	KeyDown(code int) bool

	// ControllerAvailable reports whether a controller device node exists,
	// independent of whether it has been acquired.
	ControllerAvailable() bool
	// AcquireController opens the controller device and starts reading it.
	// It is a no-op if the controller is already acquired.
	AcquireController() error
	// DropController closes the controller and zeroes its cached state.
	DropController()

	Axis(code int) float64
	Button(code int) bool
	Hat() (x, y int)

	Close() error
}
