// Package actuator converts normalized input into servo pulse widths and
// drives them out through a PWM backend.
package actuator

import (
	"log"
	"time"
)

// Output is a steering/throttle pulse sink plus the recording indicator.
// Pulse widths are milliseconds of servo high time; a non-positive pulse
// turns the channel off entirely rather than holding the neutral point.
type Output interface {
	WriteSteering(pulseMs float64) error
	WriteThrottle(pulseMs float64) error
	SetIndicator(on bool) error
	// Neutral turns both drive channels off.
	Neutral() error
	Close() error
}

// StartupSignal blinks the indicator three times to show the rig is ready.
func StartupSignal(out Output) {
	for i := 0; i < 3; i++ {
		if err := out.SetIndicator(true); err != nil {
			log.Printf("actuator: indicator: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
		if err := out.SetIndicator(false); err != nil {
			log.Printf("actuator: indicator: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}
