// Copyright (c) 2026 Rover Labs
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package camera

import (
	"fmt"
	"image"
	"image/color"
	"log"

	"github.com/blackjack/webcam"
	xdraw "golang.org/x/image/draw"
)

// YUYV 4:2:2, the format every Pi-attached UVC camera supports.
const pixelFormatYUYV = webcam.PixelFormat(0x56595559)

// Capture wait per frame, in seconds.
const frameTimeout = 1

type v4l2Device struct {
	cam    *webcam.Webcam
	width  int // configured output size
	height int
	frameW int // negotiated capture size
	frameH int
}

// OpenV4L2 opens and starts the sensor at the nearest size to the requested
// one; frames are downscaled to exactly width x height on capture.
func OpenV4L2(devicePath string, width, height int) (Device, error) {
	cam, err := webcam.Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", devicePath, err)
	}

	format, w, h, err := cam.SetImageFormat(pixelFormatYUYV, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("camera: set format: %w", err)
	}
	if format != pixelFormatYUYV {
		cam.Close()
		return nil, fmt.Errorf("camera: YUYV not supported by %s (got %08x)", devicePath, format)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("camera: start streaming: %w", err)
	}

	log.Printf("camera: %s streaming %dx%d YUYV (output %dx%d)", devicePath, w, h, width, height)
	return &v4l2Device{
		cam:    cam,
		width:  width,
		height: height,
		frameW: int(w),
		frameH: int(h),
	}, nil
}

func (d *v4l2Device) Capture() (image.Image, error) {
	if err := d.cam.WaitForFrame(frameTimeout); err != nil {
		return nil, fmt.Errorf("camera: wait for frame: %w", err)
	}
	buf, err := d.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("camera: read frame: %w", err)
	}
	if len(buf) < d.frameW*d.frameH*2 {
		return nil, fmt.Errorf("camera: short frame (%d bytes)", len(buf))
	}

	img := yuyvToRGBA(buf, d.frameW, d.frameH)
	if d.frameW == d.width && d.frameH == d.height {
		return img, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst, nil
}

func (d *v4l2Device) Close() error {
	if err := d.cam.StopStreaming(); err != nil {
		d.cam.Close()
		return fmt.Errorf("camera: stop streaming: %w", err)
	}
	return d.cam.Close()
}

// yuyvToRGBA expands a packed YUYV buffer: every four bytes hold the luma of
// two horizontally adjacent pixels and their shared chroma pair.
func yuyvToRGBA(buf []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x += 2 {
			i := (y*w + x) * 2
			y0, u, y1, v := buf[i], buf[i+1], buf[i+2], buf[i+3]
			setPixel(img, x, y, y0, u, v)
			setPixel(img, x+1, y, y1, u, v)
		}
	}
	return img
}

func setPixel(img *image.RGBA, x, y int, luma, cb, cr byte) {
	r, g, b := color.YCbCrToRGB(luma, cb, cr)
	img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
}
