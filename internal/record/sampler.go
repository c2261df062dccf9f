package record

import (
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/roverlabs/drivelog/internal/camera"
)

// Sampler decimates the control loop down to training samples: while a
// session is active, every intervalth tick captures one frame and appends
// its label. Per-frame failures skip that sample and never stop recording.
type Sampler struct {
	interval int
	camera   camera.Device
	mgr      *Manager

	counter int
}

func NewSampler(interval int, cam camera.Device, mgr *Manager) *Sampler {
	return &Sampler{
		interval: interval,
		camera:   cam,
		mgr:      mgr,
	}
}

// Reset clears the tick counter. Called on session start so the first
// sample lands a full interval into the session.
func (s *Sampler) Reset() { s.counter = 0 }

// Tick advances the sampler by one control tick. steeringPulseMs is the
// steering command computed this tick, recorded as the frame's label.
func (s *Sampler) Tick(steeringPulseMs float64, now time.Time) {
	if !s.mgr.Active() {
		return
	}

	s.counter++
	if s.counter%s.interval != 0 {
		return
	}

	img, err := s.camera.Capture()
	if err != nil {
		log.Printf("sampler: capture failed, frame skipped: %v", err)
		return
	}

	sess := s.mgr.Session()
	index := len(sess.Labels)
	path := filepath.Join(sess.ImagesDir, fmt.Sprintf("frame_%05d.jpg", index))
	if err := writeJPEG(path, img); err != nil {
		log.Printf("sampler: %v, frame skipped", err)
		return
	}

	sess.Labels = append(sess.Labels, FrameRecord{
		Frame:         index,
		SteeringValue: steeringPulseMs,
		Timestamp:     now.Format(time.RFC3339Nano),
	})
	log.Printf("sampler: saved frame %d with steering value %.3f", index, steeringPulseMs)
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
