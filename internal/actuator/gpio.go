// Copyright (c) 2026 Rover Labs
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

type gpioOutput struct {
	steering  gpio.PinIO
	throttle  gpio.PinIO
	indicator gpio.PinOut
	freq      physic.Frequency
	periodMs  float64
}

// NewGPIO drives the servos with hardware PWM directly on GPIO pins, the
// same wiring as the classic pigpio setup (steering GPIO12, throttle
// GPIO13, indicator LED GPIO25).
func NewGPIO(steeringPin, throttlePin, indicatorPin string, freqHz int) (Output, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("actuator: periph host init: %w", err)
	}

	steering := gpioreg.ByName(steeringPin)
	if steering == nil {
		return nil, fmt.Errorf("actuator: steering pin %q not found", steeringPin)
	}
	throttle := gpioreg.ByName(throttlePin)
	if throttle == nil {
		return nil, fmt.Errorf("actuator: throttle pin %q not found", throttlePin)
	}
	indicator := gpioreg.ByName(indicatorPin)
	if indicator == nil {
		return nil, fmt.Errorf("actuator: indicator pin %q not found", indicatorPin)
	}
	if err := indicator.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("actuator: indicator pin init: %w", err)
	}

	o := &gpioOutput{
		steering:  steering,
		throttle:  throttle,
		indicator: indicator,
		freq:      physic.Frequency(freqHz) * physic.Hertz,
		periodMs:  1000.0 / float64(freqHz),
	}
	log.Printf("actuator: GPIO PWM at %d Hz (steering %s, throttle %s, indicator %s)",
		freqHz, steeringPin, throttlePin, indicatorPin)
	return o, nil
}

func (o *gpioOutput) writePulse(pin gpio.PinIO, pulseMs float64) error {
	if pulseMs <= 0 {
		return pin.PWM(0, o.freq)
	}
	duty := gpio.Duty(pulseMs / o.periodMs * float64(gpio.DutyMax))
	if duty > gpio.DutyMax {
		duty = gpio.DutyMax
	}
	return pin.PWM(duty, o.freq)
}

func (o *gpioOutput) WriteSteering(pulseMs float64) error {
	if err := o.writePulse(o.steering, pulseMs); err != nil {
		return fmt.Errorf("actuator: steering PWM: %w", err)
	}
	return nil
}

func (o *gpioOutput) WriteThrottle(pulseMs float64) error {
	if err := o.writePulse(o.throttle, pulseMs); err != nil {
		return fmt.Errorf("actuator: throttle PWM: %w", err)
	}
	return nil
}

func (o *gpioOutput) SetIndicator(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return o.indicator.Out(level)
}

func (o *gpioOutput) Neutral() error {
	errSteer := o.writePulse(o.steering, 0)
	errThrottle := o.writePulse(o.throttle, 0)
	if errSteer != nil {
		return fmt.Errorf("actuator: steering off: %w", errSteer)
	}
	if errThrottle != nil {
		return fmt.Errorf("actuator: throttle off: %w", errThrottle)
	}
	return nil
}

func (o *gpioOutput) Close() error {
	if err := o.steering.Halt(); err != nil {
		return err
	}
	if err := o.throttle.Halt(); err != nil {
		return err
	}
	return o.indicator.Halt()
}
