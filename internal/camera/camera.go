// Package camera acquires frames from a V4L2 image sensor at a reduced
// resolution suitable for training data.
package camera

import "image"

// Device is a started image sensor. Capture blocks for the next frame.
type Device interface {
	Capture() (image.Image, error)
	Close() error
}
