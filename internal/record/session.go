// Package record owns the recording lifecycle: session identity and storage
// layout, the in-memory label log, and frame-decimated capture.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Label file written at session stop, matching the layout older collection
// rigs produced so downstream training scripts keep working.
const labelFileName = "steering_data.json"

// FrameRecord pairs one saved image with the steering pulse in effect when
// it was captured. Frame equals the record's 0-based position in the label
// log; the log is dense, no gaps and no duplicates.
type FrameRecord struct {
	Frame         int     `json:"frame"`
	SteeringValue float64 `json:"steering_value"`
	Timestamp     string  `json:"timestamp"`
}

// Session is one bounded recording episode backed by its own directory.
type Session struct {
	ID        string
	Root      string
	ImagesDir string
	Labels    []FrameRecord
}

// Status is the observable outcome of a start or stop request. Invalid
// transitions are reported, not raised: the loop keeps driving either way.
type Status int

const (
	Started Status = iota
	AlreadyActive
	NoCamera
	Stopped
	NotActive
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case Started:
		return "started"
	case AlreadyActive:
		return "already active"
	case NoCamera:
		return "no camera"
	case Stopped:
		return "stopped"
	case NotActive:
		return "not active"
	default:
		return "unknown"
	}
}

// Indicator is the recording light on the rig.
type Indicator interface {
	SetIndicator(on bool) error
}

// TrackSink is notified of session boundaries so side logs (the GPS track)
// can follow the session directory. May be nil.
type TrackSink interface {
	Begin(sessionDir string)
	End()
}

// Manager owns at most one active Session at a time.
type Manager struct {
	baseDir    string
	haveCamera bool
	indicator  Indicator
	track      TrackSink

	session *Session
}

func NewManager(baseDir string, haveCamera bool, indicator Indicator, track TrackSink) *Manager {
	return &Manager{
		baseDir:    baseDir,
		haveCamera: haveCamera,
		indicator:  indicator,
		track:      track,
	}
}

// Active reports whether a recording session is in progress.
func (m *Manager) Active() bool { return m.session != nil }

// Session returns the active session, or nil.
func (m *Manager) Session() *Session { return m.session }

// Start allocates a new session with a timestamp-derived identity and
// creates its directory layout. Starting while active or without a camera
// changes nothing and reports why.
func (m *Manager) Start(now time.Time) (Status, error) {
	if m.session != nil {
		return AlreadyActive, nil
	}
	if !m.haveCamera {
		return NoCamera, nil
	}

	id := "session_" + now.Format("2006-01-02_15-04-05")
	root := filepath.Join(m.baseDir, id)
	imagesDir := filepath.Join(root, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return NoCamera, fmt.Errorf("session %s: create directories: %w", id, err)
	}

	m.session = &Session{
		ID:        id,
		Root:      root,
		ImagesDir: imagesDir,
	}
	if m.track != nil {
		m.track.Begin(root)
	}
	if err := m.indicator.SetIndicator(true); err != nil {
		return Started, fmt.Errorf("session %s: indicator on: %w", id, err)
	}
	return Started, nil
}

// Stop flushes the label log and discards the session. Stopping while not
// active is a no-op. The flushed session is returned for reporting; an
// empty label log produces no label file.
func (m *Manager) Stop() (Status, *Session, error) {
	if m.session == nil {
		return NotActive, nil, nil
	}
	s := m.session
	m.session = nil

	if m.track != nil {
		m.track.End()
	}
	indErr := m.indicator.SetIndicator(false)

	if len(s.Labels) > 0 {
		payload, err := json.Marshal(s.Labels)
		if err != nil {
			return Stopped, s, fmt.Errorf("session %s: marshal labels: %w", s.ID, err)
		}
		path := filepath.Join(s.Root, labelFileName)
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return Stopped, s, fmt.Errorf("session %s: write labels: %w", s.ID, err)
		}
	}

	if indErr != nil {
		return Stopped, s, fmt.Errorf("session %s: indicator off: %w", s.ID, indErr)
	}
	return Stopped, s, nil
}
