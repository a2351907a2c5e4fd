package camera

import (
	"context"
	"errors"
	"image"
	"log/slog"
)

var (
	ErrNotOpen  = errors.New("camera is not open")
	ErrNotFound = errors.New("camera not found")
)

// Device is a video source. Implementations need not be safe for concurrent
// use; a device is owned by exactly one session at a time.
type Device interface {
	// Open acquires the device and verifies a frame can be read.
	Open() error
	Close() error
	IsOpen() bool
	Name() string
	CaptureFrame(ctx context.Context) (image.Image, error)
	// Resolution reports the frame size, (0, 0) when closed.
	Resolution() (int, int)
	SetResolution(width, height int) error
}

// Opener builds an unopened device for an index.
type Opener func(index int) Device

type Info struct {
	Index  int
	Name   string
	Width  int
	Height int
	Open   bool
}

func Describe(index int, d Device) Info {
	w, h := d.Resolution()
	return Info{Index: index, Name: d.Name(), Width: w, Height: h, Open: d.IsOpen()}
}

const DefaultMaxIndex = 3

// Discover probes indices 0..maxIndex-1 in order and stops at the first index
// that cannot be opened. The returned devices are open; callers close the
// ones they do not keep.
func Discover(open Opener, maxIndex int) []Device {
	if maxIndex <= 0 {
		maxIndex = DefaultMaxIndex
	}

	var found []Device
	for i := 0; i < maxIndex; i++ {
		dev := open(i)
		if err := dev.Open(); err != nil {
			slog.Info("camera probe stopped", "index", i, "error", err)
			if err := dev.Close(); err != nil {
				slog.Warn("error releasing camera after failed probe", "index", i, "error", err)
			}
			break
		}
		slog.Info("camera found", "index", i, "name", dev.Name())
		found = append(found, dev)
	}
	return found
}
