// Package gpstrack appends GPS fixes to a per-session track file so a
// dataset can be georeferenced after the fact.
package gpstrack

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

const trackFileName = "track.jsonl"

// Fix is one GPS track point, one JSON line in the session's track file.
type Fix struct {
	Time       string  `json:"time"`
	Date       string  `json:"date"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	SpeedKnots float64 `json:"speed_knots"`
	CourseDeg  float64 `json:"course_deg"`
	Validity   string  `json:"validity"`
}

// Tracker reads NMEA sentences in the background and, while a session is
// open, appends each valid RMC fix to the session's track file. Between
// sessions fixes are discarded.
type Tracker struct {
	port io.ReadWriteCloser

	mu   sync.Mutex
	file *os.File
}

// Open opens the GPS serial port and starts the reader.
func Open(portName string, baudRate int) (*Tracker, error) {
	opts := serial.OpenOptions{
		PortName:        portName,
		BaudRate:        uint(baudRate),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", portName, err)
	}
	log.Printf("gps: serial port opened on %s at %d baud", portName, baudRate)

	t := &Tracker{port: port}
	go t.readLoop()
	return t, nil
}

func (t *Tracker) readLoop() {
	reader := bufio.NewReader(t.port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("gps: read error, track logging stopped: %v", err)
			return
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy receivers emit partial sentences, skip them
			continue
		}
		if sentence.DataType() != nmea.TypeRMC {
			continue
		}

		m := sentence.(nmea.RMC)
		if string(m.Validity) != "A" {
			continue
		}
		t.append(Fix{
			Time:       m.Time.String(),
			Date:       m.Date.String(),
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			SpeedKnots: m.Speed,
			CourseDeg:  m.Course,
			Validity:   string(m.Validity),
		})
	}
}

func (t *Tracker) append(f Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	if _, err := t.file.Write(append(payload, '\n')); err != nil {
		log.Printf("gps: track write error: %v", err)
	}
}

// Begin starts logging fixes into the given session directory.
func (t *Tracker) Begin(sessionDir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.Create(filepath.Join(sessionDir, trackFileName))
	if err != nil {
		log.Printf("gps: cannot create track file: %v", err)
		return
	}
	t.file = f
}

// End stops logging and closes the current track file, if any.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
}

// Close releases the track file and the serial port.
func (t *Tracker) Close() {
	t.End()
	if t.port != nil {
		t.port.Close()
	}
}
