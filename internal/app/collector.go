package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/roverlabs/drivelog/internal/actuator"
	"github.com/roverlabs/drivelog/internal/camera"
	"github.com/roverlabs/drivelog/internal/config"
	"github.com/roverlabs/drivelog/internal/gpstrack"
	"github.com/roverlabs/drivelog/internal/hid"
	"github.com/roverlabs/drivelog/internal/input"
	"github.com/roverlabs/drivelog/internal/record"
	"github.com/roverlabs/drivelog/internal/telemetry"
)

// collector owns every hardware handle for the life of the process. All of
// its state is touched only by the sequential tick steps; the only
// concurrency is inside the HID and GPS readers, which hand data over
// through channels and a mutex respectively.
type collector struct {
	cfg *config.Config

	out     actuator.Output
	hid     hid.Subsystem
	cam     camera.Device // nil when unavailable
	track   *gpstrack.Tracker
	pub     telemetry.Publisher
	arbiter *input.Arbiter
	mixer   actuator.Mixer
	mgr     *record.Manager
	sampler *record.Sampler

	ticks int
}

// RunCollector brings up the rig and drives the fixed-rate control loop
// until the context is cancelled or the quit key is pressed. Only actuator
// bring-up failure is fatal; every other device degrades the rig and the
// loop still runs.
func RunCollector(ctx context.Context) error {
	cfg := config.Get()
	c := &collector{cfg: cfg, pub: telemetry.Nop()}

	out, err := buildActuator(cfg)
	if err != nil {
		return err
	}
	c.out = out
	defer c.teardown()

	h, err := hid.NewEvdev()
	if err != nil {
		return fmt.Errorf("hid subsystem: %w", err)
	}
	c.hid = h

	if cam, err := camera.OpenV4L2(cfg.CameraDevice, cfg.CameraWidth, cfg.CameraHeight); err != nil {
		log.Printf("camera unavailable, recording disabled: %v", err)
	} else {
		c.cam = cam
	}

	if cfg.MQTTBroker != "" {
		if pub, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicSession, cfg.TopicStatus); err != nil {
			log.Printf("telemetry unavailable: %v", err)
		} else {
			c.pub = pub
		}
	}

	var trackSink record.TrackSink
	if cfg.GPSSerialPort != "" {
		if track, err := gpstrack.Open(cfg.GPSSerialPort, cfg.GPSBaudRate); err != nil {
			log.Printf("gps track log unavailable: %v", err)
		} else {
			c.track = track
			trackSink = track
		}
	}

	c.arbiter = input.NewArbiter(c.hid, input.Options{
		Deadzone:     cfg.ControllerDeadzone,
		BoostForward: cfg.BoostForward,
		BoostReverse: cfg.BoostReverse,
	})
	c.mixer = actuator.Mixer{
		Steering: actuator.Calibration{CenterMs: cfg.SteeringCenterMs, RangeMs: cfg.SteeringRangeMs},
		Throttle: actuator.Calibration{CenterMs: cfg.ThrottleCenterMs, RangeMs: cfg.ThrottleRangeMs},
	}
	c.mgr = record.NewManager(cfg.DataDir, c.cam != nil, c.out, trackSink)
	c.sampler = record.NewSampler(cfg.FrameInterval, c.cam, c.mgr)

	actuator.StartupSignal(c.out)
	log.Printf("collector: running at %d Hz, saving every %d ticks while recording",
		cfg.LoopRateHz, cfg.FrameInterval)

	ticker := time.NewTicker(time.Second / time.Duration(cfg.LoopRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("collector: interrupt received, shutting down")
			return nil
		case <-ticker.C:
			if quit := c.tick(time.Now()); quit {
				log.Println("collector: quit requested")
				return nil
			}
		}
	}
}

func buildActuator(cfg *config.Config) (actuator.Output, error) {
	switch cfg.ActuatorBackend {
	case "pca9685":
		return actuator.NewPCA9685(cfg.PCA9685Addr, cfg.PCA9685SteeringChannel,
			cfg.PCA9685ThrottleChannel, cfg.IndicatorPin, cfg.PWMFrequencyHz)
	default:
		return actuator.NewGPIO(cfg.SteeringPin, cfg.ThrottlePin, cfg.IndicatorPin, cfg.PWMFrequencyHz)
	}
}

// tick runs one control cycle: pump input, reconcile hot-plug, arbitrate,
// mix, write the actuators, then sample. Reports whether quit was requested.
func (c *collector) tick(now time.Time) bool {
	c.hid.Pump()
	if c.hid.QuitRequested() {
		return true
	}

	c.arbiter.HandleHotplug()
	st, toggle := c.arbiter.Arbitrate()
	if toggle {
		c.toggleRecording(now)
	}

	cmd := c.mixer.Mix(st)
	if err := c.out.WriteSteering(cmd.SteeringPulseMs); err != nil {
		log.Printf("collector: %v", err)
	}
	// Safety fallback: without a controller the throttle is cut no matter
	// what the mixer computed. Steering is always written as computed.
	throttle := cmd.ThrottlePulseMs
	if !c.arbiter.ControllerTracked() {
		throttle = 0
	}
	if err := c.out.WriteThrottle(throttle); err != nil {
		log.Printf("collector: %v", err)
	}

	c.sampler.Tick(cmd.SteeringPulseMs, now)

	c.ticks++
	if c.cfg.StatusIntervalTicks > 0 && c.ticks%c.cfg.StatusIntervalTicks == 0 {
		frames := 0
		if s := c.mgr.Session(); s != nil {
			frames = len(s.Labels)
		}
		c.pub.Status(st.Source.String(), c.mgr.Active(), frames)
	}
	return false
}

// toggleRecording stops the session if one is active, else starts one.
// Never both in one tick.
func (c *collector) toggleRecording(now time.Time) {
	if c.mgr.Active() {
		c.stopRecording()
		return
	}

	status, err := c.mgr.Start(now)
	if err != nil {
		log.Printf("session: %v", err)
	}
	switch status {
	case record.Started:
		c.sampler.Reset()
		id := c.mgr.Session().ID
		log.Printf("session: started %s", id)
		c.pub.SessionStarted(id)
	case record.AlreadyActive:
		log.Println("session: recording already in progress")
	case record.NoCamera:
		log.Println("session: camera not connected, cannot record")
	}
}

func (c *collector) stopRecording() {
	status, sess, err := c.mgr.Stop()
	if err != nil {
		log.Printf("session: %v", err)
	}
	switch status {
	case record.Stopped:
		log.Printf("session: stopped %s (%d frames)", sess.ID, len(sess.Labels))
		c.pub.SessionStopped(sess.ID, len(sess.Labels))
	case record.NotActive:
		log.Println("session: no recording in progress")
	}
}

// teardown leaves the vehicle safe on every exit path: recording flushed,
// both drive channels off, indicator released, devices closed. It runs
// exactly once, from the deferred call in RunCollector.
func (c *collector) teardown() {
	if c.mgr != nil && c.mgr.Active() {
		c.stopRecording()
	}
	if err := c.out.Neutral(); err != nil {
		log.Printf("teardown: %v", err)
	}
	if err := c.out.SetIndicator(false); err != nil {
		log.Printf("teardown: %v", err)
	}
	if err := c.out.Close(); err != nil {
		log.Printf("teardown: actuator close: %v", err)
	}
	if c.cam != nil {
		if err := c.cam.Close(); err != nil {
			log.Printf("teardown: %v", err)
		} else {
			log.Println("camera stopped")
		}
	}
	if c.track != nil {
		c.track.Close()
	}
	c.pub.Close()
	if c.hid != nil {
		if err := c.hid.Close(); err != nil {
			log.Printf("teardown: hid close: %v", err)
		}
	}
}
