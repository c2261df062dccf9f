package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeIndicator struct {
	levels []bool
}

func (f *fakeIndicator) SetIndicator(on bool) error {
	f.levels = append(f.levels, on)
	return nil
}

type fakeTrack struct {
	begun []string
	ended int
}

func (f *fakeTrack) Begin(dir string) { f.begun = append(f.begun, dir) }
func (f *fakeTrack) End()             { f.ended++ }

func testTime() time.Time {
	return time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
}

func TestStartCreatesSessionLayout(t *testing.T) {
	dir := t.TempDir()
	ind := &fakeIndicator{}
	m := NewManager(dir, true, ind, nil)

	status, err := m.Start(testTime())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if status != Started {
		t.Fatalf("expected Started, got %v", status)
	}

	s := m.Session()
	if s == nil {
		t.Fatal("expected an active session")
	}
	if s.ID != "session_2026-08-24_10-30-00" {
		t.Fatalf("unexpected session id %q", s.ID)
	}
	if _, err := os.Stat(s.ImagesDir); err != nil {
		t.Fatalf("images dir not created: %v", err)
	}
	if len(ind.levels) != 1 || !ind.levels[0] {
		t.Fatalf("expected indicator turned on, got %v", ind.levels)
	}
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, true, &fakeIndicator{}, nil)

	if _, err := m.Start(testTime()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	s := m.Session()
	s.Labels = append(s.Labels, FrameRecord{Frame: 0, SteeringValue: 1.1})

	status, err := m.Start(testTime().Add(time.Minute))
	if err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	if status != AlreadyActive {
		t.Fatalf("expected AlreadyActive, got %v", status)
	}
	if m.Session() != s {
		t.Fatal("existing session must be untouched")
	}
	if len(m.Session().Labels) != 1 {
		t.Fatalf("label log must be untouched, got %d entries", len(m.Session().Labels))
	}
}

func TestStartWithoutCamera(t *testing.T) {
	m := NewManager(t.TempDir(), false, &fakeIndicator{}, nil)

	status, err := m.Start(testTime())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if status != NoCamera {
		t.Fatalf("expected NoCamera, got %v", status)
	}
	if m.Active() {
		t.Fatal("no session must be created without a camera")
	}
}

func TestStopFlushesLabelLog(t *testing.T) {
	dir := t.TempDir()
	ind := &fakeIndicator{}
	m := NewManager(dir, true, ind, nil)

	if _, err := m.Start(testTime()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	s := m.Session()
	s.Labels = append(s.Labels,
		FrameRecord{Frame: 0, SteeringValue: 1.075, Timestamp: "2026-08-24T10:30:01Z"},
		FrameRecord{Frame: 1, SteeringValue: 1.12, Timestamp: "2026-08-24T10:30:02Z"},
	)

	status, flushed, err := m.Stop()
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if status != Stopped {
		t.Fatalf("expected Stopped, got %v", status)
	}
	if m.Active() {
		t.Fatal("session must be discarded after Stop")
	}
	if len(ind.levels) != 2 || ind.levels[1] {
		t.Fatalf("expected indicator turned off, got %v", ind.levels)
	}

	raw, err := os.ReadFile(filepath.Join(flushed.Root, "steering_data.json"))
	if err != nil {
		t.Fatalf("label file not written: %v", err)
	}
	var labels []FrameRecord
	if err := json.Unmarshal(raw, &labels); err != nil {
		t.Fatalf("label file not valid JSON: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("expected 2 label entries, got %d", len(labels))
	}
	for i, rec := range labels {
		if rec.Frame != i {
			t.Fatalf("expected dense frame indices, entry %d has frame %d", i, rec.Frame)
		}
	}
}

func TestStopWithEmptyLogWritesNoFile(t *testing.T) {
	m := NewManager(t.TempDir(), true, &fakeIndicator{}, nil)

	if _, err := m.Start(testTime()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	_, flushed, err := m.Stop()
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(flushed.Root, "steering_data.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no label file for empty log, stat err = %v", err)
	}
}

func TestStopTwiceIsIdempotent(t *testing.T) {
	ind := &fakeIndicator{}
	m := NewManager(t.TempDir(), true, ind, nil)

	if _, err := m.Start(testTime()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if status, _, _ := m.Stop(); status != Stopped {
		t.Fatalf("expected Stopped on first call, got %v", status)
	}
	indicatorCalls := len(ind.levels)

	status, flushed, err := m.Stop()
	if err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if status != NotActive {
		t.Fatalf("expected NotActive on second call, got %v", status)
	}
	if flushed != nil {
		t.Fatal("second Stop must not return a session")
	}
	if len(ind.levels) != indicatorCalls {
		t.Fatal("second Stop must not touch the indicator again")
	}
}

func TestTrackSinkFollowsSession(t *testing.T) {
	track := &fakeTrack{}
	m := NewManager(t.TempDir(), true, &fakeIndicator{}, track)

	if _, err := m.Start(testTime()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	root := m.Session().Root
	if len(track.begun) != 1 || track.begun[0] != root {
		t.Fatalf("expected track Begin with %q, got %v", root, track.begun)
	}

	m.Stop()
	m.Stop()
	if track.ended != 1 {
		t.Fatalf("expected exactly one track End, got %d", track.ended)
	}
}
