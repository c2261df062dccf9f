// Copyright (c) 2026 Rover Labs
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hid

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gvalkov/golang-evdev"
)

const devInputByID = "/dev/input/by-id"

// Gamepads report stick positions as signed 16-bit values.
const axisScale = 32767.0

type rawEvent struct {
	ev  *evdev.InputEvent
	err error
}

type evdevSubsystem struct {
	watcher *fsnotify.Watcher

	keyboardPath string
	keyboard     *evdev.InputDevice
	keyEvents    chan rawEvent
	keys         map[uint16]bool
	quit         bool

	controllerPath string
	controller     *evdev.InputDevice
	padEvents      chan rawEvent
	axes           map[uint16]float64
	buttons        map[uint16]bool
	hatX, hatY     int
}

// NewEvdev scans /dev/input/by-id for the keyboard and controller nodes and
// starts watching the directory so controller hot-plug is picked up without
// rescanning on every tick.
func NewEvdev() (Subsystem, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hid: fsnotify: %w", err)
	}
	if err := watcher.Add(devInputByID); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("hid: watch %s: %w", devInputByID, err)
	}

	s := &evdevSubsystem{
		watcher: watcher,
		keys:    make(map[uint16]bool),
		axes:    make(map[uint16]float64),
		buttons: make(map[uint16]bool),
	}
	s.rescan()

	if s.keyboardPath == "" {
		log.Println("hid: no keyboard device found, keyboard input disabled")
	} else if err := s.openKeyboard(); err != nil {
		log.Printf("hid: %v, keyboard input disabled", err)
	}
	return s, nil
}

// rescan refreshes the device paths from the by-id directory.
func (s *evdevSubsystem) rescan() {
	s.controllerPath = ""
	entries, err := os.ReadDir(devInputByID)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, "-event-joystick") {
			s.controllerPath = filepath.Join(devInputByID, name)
		}
		if s.keyboardPath == "" && strings.HasSuffix(name, "-event-kbd") {
			s.keyboardPath = filepath.Join(devInputByID, name)
		}
	}
}

func (s *evdevSubsystem) openKeyboard() error {
	dev, err := evdev.Open(s.keyboardPath)
	if err != nil {
		return fmt.Errorf("open keyboard %s: %w", s.keyboardPath, err)
	}
	// Grab so drive keys do not leak into the console.
	dev.Grab()
	s.keyboard = dev
	s.keyEvents = make(chan rawEvent, 256)
	go pumpDevice(dev, s.keyEvents)
	log.Printf("hid: keyboard attached (%s)", s.keyboardPath)
	return nil
}

// pumpDevice forwards events from a blocking evdev read into a channel the
// control loop drains once per tick. Events are dropped if the channel is
// full; the reader exits after forwarding the first read error.
func pumpDevice(dev *evdev.InputDevice, out chan<- rawEvent) {
	for {
		ev, err := dev.ReadOne()
		select {
		case out <- rawEvent{ev: ev, err: err}:
		default:
		}
		if err != nil {
			return
		}
	}
}

func (s *evdevSubsystem) Pump() {
	s.drainWatcher()
	s.drainKeyboard()
	s.drainController()
}

func (s *evdevSubsystem) drainWatcher() {
	for {
		select {
		case ev := <-s.watcher.Events:
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) {
				s.rescan()
			}
		case err := <-s.watcher.Errors:
			log.Printf("hid: watcher error: %v", err)
		default:
			return
		}
	}
}

func (s *evdevSubsystem) drainKeyboard() {
	if s.keyEvents == nil {
		return
	}
	for {
		select {
		case e := <-s.keyEvents:
			if e.err != nil {
				log.Printf("hid: keyboard lost: %v", e.err)
				s.keyboard.File.Close()
				s.keyboard = nil
				s.keyEvents = nil
				s.keys = make(map[uint16]bool)
				return
			}
			if e.ev.Type != evdev.EV_KEY {
				continue
			}
			// Value 2 is autorepeat, still held.
			down := e.ev.Value != 0
			s.keys[e.ev.Code] = down
			if e.ev.Code == KeyQuit && down {
				s.quit = true
			}
		default:
			return
		}
	}
}

func (s *evdevSubsystem) drainController() {
	if s.controller == nil || s.padEvents == nil {
		return
	}
	for {
		select {
		case e := <-s.padEvents:
			if e.err != nil {
				log.Printf("hid: controller read error: %v", e.err)
				s.closeController()
				return
			}
			switch e.ev.Type {
			case evdev.EV_KEY:
				s.buttons[e.ev.Code] = e.ev.Value != 0
			case evdev.EV_ABS:
				switch e.ev.Code {
				case evdev.ABS_HAT0X:
					s.hatX = int(e.ev.Value)
				case evdev.ABS_HAT0Y:
					s.hatY = int(e.ev.Value)
				default:
					s.axes[e.ev.Code] = float64(e.ev.Value) / axisScale
				}
			}
		default:
			return
		}
	}
}

func (s *evdevSubsystem) QuitRequested() bool { return s.quit }

func (s *evdevSubsystem) AnyKeyDown() bool {
	for _, down := range s.keys {
		if down {
			return true
		}
	}
	return false
}

func (s *evdevSubsystem) KeyDown(code int) bool { return s.keys[uint16(code)] }

func (s *evdevSubsystem) ControllerAvailable() bool { return s.controllerPath != "" }

func (s *evdevSubsystem) AcquireController() error {
	if s.controller != nil {
		return nil
	}
	if s.controllerPath == "" {
		return errors.New("hid: no controller device")
	}
	dev, err := evdev.Open(s.controllerPath)
	if err != nil {
		return fmt.Errorf("hid: open controller %s: %w", s.controllerPath, err)
	}
	s.controller = dev
	s.padEvents = make(chan rawEvent, 256)
	go pumpDevice(dev, s.padEvents)
	return nil
}

func (s *evdevSubsystem) DropController() {
	if s.controller == nil {
		return
	}
	s.closeController()
}

// closeController closes the device and zeroes the cached controller state.
// The reader goroutine exits on its next read error.
func (s *evdevSubsystem) closeController() {
	s.controller.File.Close()
	s.controller = nil
	s.padEvents = nil
	s.axes = make(map[uint16]float64)
	s.buttons = make(map[uint16]bool)
	s.hatX, s.hatY = 0, 0
}

func (s *evdevSubsystem) Axis(code int) float64 { return s.axes[uint16(code)] }
func (s *evdevSubsystem) Button(code int) bool  { return s.buttons[uint16(code)] }
func (s *evdevSubsystem) Hat() (int, int)       { return s.hatX, s.hatY }

func (s *evdevSubsystem) Close() error {
	if s.controller != nil {
		s.closeController()
	}
	if s.keyboard != nil {
		s.keyboard.Release()
		s.keyboard.File.Close()
		s.keyboard = nil
	}
	return s.watcher.Close()
}
