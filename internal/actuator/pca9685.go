// Copyright (c) 2026 Rover Labs
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// The PCA9685 resolves one PWM period into 4096 ticks.
const pcaResolution = 4096

type pcaOutput struct {
	bus        i2c.BusCloser
	dev        *pca9685.Dev
	steeringCh int
	throttleCh int
	indicator  gpio.PinOut
	periodMs   float64
}

// NewPCA9685 drives the servos through a PCA9685 16-channel servo hat on
// the default I2C bus. The indicator LED stays on a plain GPIO pin.
func NewPCA9685(addr uint16, steeringCh, throttleCh int, indicatorPin string, freqHz int) (Output, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("actuator: periph host init: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("actuator: open I2C bus: %w", err)
	}
	dev, err := pca9685.NewI2C(bus, addr)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("actuator: PCA9685 at 0x%02X: %w", addr, err)
	}
	if err := dev.SetPwmFreq(physic.Frequency(freqHz) * physic.Hertz); err != nil {
		bus.Close()
		return nil, fmt.Errorf("actuator: PCA9685 frequency: %w", err)
	}

	indicator := gpioreg.ByName(indicatorPin)
	if indicator == nil {
		bus.Close()
		return nil, fmt.Errorf("actuator: indicator pin %q not found", indicatorPin)
	}
	if err := indicator.Out(gpio.Low); err != nil {
		bus.Close()
		return nil, fmt.Errorf("actuator: indicator pin init: %w", err)
	}

	o := &pcaOutput{
		bus:        bus,
		dev:        dev,
		steeringCh: steeringCh,
		throttleCh: throttleCh,
		indicator:  indicator,
		periodMs:   1000.0 / float64(freqHz),
	}
	log.Printf("actuator: PCA9685 at 0x%02X, %d Hz (steering ch %d, throttle ch %d)",
		addr, freqHz, steeringCh, throttleCh)
	return o, nil
}

func (o *pcaOutput) writePulse(channel int, pulseMs float64) error {
	if pulseMs <= 0 {
		return o.dev.SetPwm(channel, 0, 0)
	}
	off := gpio.Duty(pulseMs / o.periodMs * pcaResolution)
	if off >= pcaResolution {
		off = pcaResolution - 1
	}
	return o.dev.SetPwm(channel, 0, off)
}

func (o *pcaOutput) WriteSteering(pulseMs float64) error {
	if err := o.writePulse(o.steeringCh, pulseMs); err != nil {
		return fmt.Errorf("actuator: steering channel %d: %w", o.steeringCh, err)
	}
	return nil
}

func (o *pcaOutput) WriteThrottle(pulseMs float64) error {
	if err := o.writePulse(o.throttleCh, pulseMs); err != nil {
		return fmt.Errorf("actuator: throttle channel %d: %w", o.throttleCh, err)
	}
	return nil
}

func (o *pcaOutput) SetIndicator(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return o.indicator.Out(level)
}

func (o *pcaOutput) Neutral() error {
	errSteer := o.writePulse(o.steeringCh, 0)
	errThrottle := o.writePulse(o.throttleCh, 0)
	if errSteer != nil {
		return fmt.Errorf("actuator: steering off: %w", errSteer)
	}
	if errThrottle != nil {
		return fmt.Errorf("actuator: throttle off: %w", errThrottle)
	}
	return nil
}

func (o *pcaOutput) Close() error {
	if err := o.indicator.Halt(); err != nil {
		o.bus.Close()
		return err
	}
	return o.bus.Close()
}
