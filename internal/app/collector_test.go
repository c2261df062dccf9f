package app

import (
	"image"
	"math"
	"testing"
	"time"

	"github.com/roverlabs/drivelog/internal/actuator"
	"github.com/roverlabs/drivelog/internal/config"
	"github.com/roverlabs/drivelog/internal/hid"
	"github.com/roverlabs/drivelog/internal/input"
	"github.com/roverlabs/drivelog/internal/record"
	"github.com/roverlabs/drivelog/internal/telemetry"
)

type stubHID struct {
	keys      map[int]bool
	axes      map[int]float64
	buttons   map[int]bool
	hatX      int
	hatY      int
	available bool
	quit      bool
}

func newStubHID() *stubHID {
	return &stubHID{
		keys:    make(map[int]bool),
		axes:    make(map[int]float64),
		buttons: make(map[int]bool),
	}
}

func (s *stubHID) Pump()                     {}
func (s *stubHID) QuitRequested() bool       { return s.quit }
func (s *stubHID) KeyDown(code int) bool     { return s.keys[code] }
func (s *stubHID) ControllerAvailable() bool { return s.available }
func (s *stubHID) AcquireController() error  { return nil }
func (s *stubHID) DropController()           {}
func (s *stubHID) Axis(code int) float64     { return s.axes[code] }
func (s *stubHID) Button(code int) bool      { return s.buttons[code] }
func (s *stubHID) Hat() (int, int)           { return s.hatX, s.hatY }
func (s *stubHID) Close() error              { return nil }

func (s *stubHID) AnyKeyDown() bool {
	for _, down := range s.keys {
		if down {
			return true
		}
	}
	return false
}

type stubOutput struct {
	steering  []float64
	throttle  []float64
	indicator []bool
	neutrals  int
	closed    int
}

func (o *stubOutput) WriteSteering(ms float64) error { o.steering = append(o.steering, ms); return nil }
func (o *stubOutput) WriteThrottle(ms float64) error { o.throttle = append(o.throttle, ms); return nil }
func (o *stubOutput) SetIndicator(on bool) error     { o.indicator = append(o.indicator, on); return nil }
func (o *stubOutput) Neutral() error                 { o.neutrals++; return nil }
func (o *stubOutput) Close() error                   { o.closed++; return nil }

type stubCamera struct{}

func (stubCamera) Capture() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}
func (stubCamera) Close() error { return nil }

func newTestCollector(t *testing.T, h *stubHID) (*collector, *stubOutput) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.FrameInterval = 5
	cfg.StatusIntervalTicks = 0

	out := &stubOutput{}
	c := &collector{
		cfg: cfg,
		out: out,
		hid: h,
		cam: stubCamera{},
		pub: telemetry.Nop(),
		arbiter: input.NewArbiter(h, input.Options{
			Deadzone:     cfg.ControllerDeadzone,
			BoostForward: cfg.BoostForward,
			BoostReverse: cfg.BoostReverse,
		}),
		mixer: actuator.Mixer{
			Steering: actuator.Calibration{CenterMs: cfg.SteeringCenterMs, RangeMs: cfg.SteeringRangeMs},
			Throttle: actuator.Calibration{CenterMs: cfg.ThrottleCenterMs, RangeMs: cfg.ThrottleRangeMs},
		},
	}
	c.mgr = record.NewManager(cfg.DataDir, true, out, nil)
	c.sampler = record.NewSampler(cfg.FrameInterval, stubCamera{}, c.mgr)
	return c, out
}

func TestTickCutsThrottleWithoutController(t *testing.T) {
	h := newStubHID()
	c, out := newTestCollector(t, h)

	// Full keyboard throttle with boost: the mixer computes 1.41 ms, but
	// with no controller tracked the output must still receive 0.
	h.keys[hid.KeyUp] = true
	h.keys[hid.KeyBoost] = true
	c.tick(time.Now())

	if len(out.throttle) != 1 || out.throttle[0] != 0 {
		t.Fatalf("expected throttle output forced to 0, got %v", out.throttle)
	}
	// Steering is still written as computed.
	if len(out.steering) != 1 || out.steering[0] != 1.075 {
		t.Fatalf("expected steering 1.075, got %v", out.steering)
	}
}

func TestTickWritesThrottleWithController(t *testing.T) {
	h := newStubHID()
	h.available = true
	c, out := newTestCollector(t, h)

	h.hatY = -1 // pad up, forward boost
	h.axes[hid.AxisThrottle] = 1
	c.tick(time.Now())

	if len(out.throttle) != 1 || math.Abs(out.throttle[0]-1.41) > 1e-9 {
		t.Fatalf("expected throttle 1.41 with controller tracked, got %v", out.throttle)
	}
}

func TestTickControllerDisconnectFallsBackToKeyboard(t *testing.T) {
	h := newStubHID()
	h.available = true
	c, out := newTestCollector(t, h)

	h.axes[hid.AxisSteering] = 0.5
	c.tick(time.Now())
	if out.steering[0] != 1.075+0.1702*0.5 {
		t.Fatalf("expected controller steering, got %g", out.steering[0])
	}

	// Unplug mid-drive with a keyboard key held: steering follows the
	// keyboard, throttle is cut on the very next tick.
	h.available = false
	h.keys[hid.KeyLeft] = true
	c.tick(time.Now())
	if out.steering[1] != 1.075-0.1702 {
		t.Fatalf("expected keyboard fallback steering, got %g", out.steering[1])
	}
	if out.throttle[1] != 0 {
		t.Fatalf("expected throttle cut after disconnect, got %g", out.throttle[1])
	}
}

func TestTickQuitKey(t *testing.T) {
	h := newStubHID()
	c, _ := newTestCollector(t, h)

	if c.tick(time.Now()) {
		t.Fatal("tick must not report quit without a request")
	}
	h.quit = true
	if !c.tick(time.Now()) {
		t.Fatal("tick must report quit when requested")
	}
}

func TestRecordToggleStartsAndStopsSession(t *testing.T) {
	h := newStubHID()
	c, out := newTestCollector(t, h)

	h.keys[hid.KeyRecord] = true
	c.tick(time.Now())
	if !c.mgr.Active() {
		t.Fatal("expected session started on record press")
	}
	if len(out.indicator) == 0 || !out.indicator[len(out.indicator)-1] {
		t.Fatal("expected indicator on after start")
	}

	// Held key must not stop it again.
	c.tick(time.Now())
	if !c.mgr.Active() {
		t.Fatal("held record key must not stop the session")
	}

	h.keys[hid.KeyRecord] = false
	c.tick(time.Now())
	h.keys[hid.KeyRecord] = true
	c.tick(time.Now())
	if c.mgr.Active() {
		t.Fatal("expected session stopped on second press")
	}
	if out.indicator[len(out.indicator)-1] {
		t.Fatal("expected indicator off after stop")
	}
}

func TestTickSamplesWhileRecording(t *testing.T) {
	h := newStubHID()
	c, _ := newTestCollector(t, h)

	h.keys[hid.KeyRecord] = true
	c.tick(time.Now())
	h.keys[hid.KeyRecord] = false

	// 12 drive ticks at interval 5 capture exactly 2 frames.
	for tick := 0; tick < 12; tick++ {
		c.tick(time.Now())
	}
	sess := c.mgr.Session()
	if sess == nil {
		t.Fatal("expected active session")
	}
	if len(sess.Labels) != 2 {
		t.Fatalf("expected 2 frames after 12 ticks at interval 5, got %d", len(sess.Labels))
	}
	if sess.Labels[0].Frame != 0 || sess.Labels[1].Frame != 1 {
		t.Fatalf("expected frame indices 0 and 1, got %+v", sess.Labels)
	}
}

func TestTeardownLeavesRigSafe(t *testing.T) {
	h := newStubHID()
	c, out := newTestCollector(t, h)

	h.keys[hid.KeyRecord] = true
	c.tick(time.Now())
	if !c.mgr.Active() {
		t.Fatal("expected session started")
	}

	c.teardown()
	if c.mgr.Active() {
		t.Fatal("teardown must stop an active session")
	}
	if out.neutrals != 1 {
		t.Fatalf("expected one Neutral call, got %d", out.neutrals)
	}
	if out.closed != 1 {
		t.Fatalf("expected actuator closed once, got %d", out.closed)
	}
	if len(out.indicator) == 0 || out.indicator[len(out.indicator)-1] {
		t.Fatal("expected indicator released off")
	}
}
