package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
)

// FakeDevice serves a fixed sequence of frames, looping over them. It backs
// tests and the demo camera of the local backend.
type FakeDevice struct {
	mu      sync.Mutex
	name    string
	frames  []image.Image
	next    int
	open    bool
	width   int
	height  int
	OpenErr error
	ReadErr error
	Reads   int
}

func NewFakeDevice(name string, frames ...image.Image) *FakeDevice {
	if len(frames) == 0 {
		frames = []image.Image{SolidFrame(640, 480, color.Gray{Y: 128})}
	}
	b := frames[0].Bounds()
	return &FakeDevice{name: name, frames: frames, width: b.Dx(), height: b.Dy()}
}

// SolidFrame returns a single colour frame.
func SolidFrame(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func (d *FakeDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.open = true
	return nil
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

func (d *FakeDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *FakeDevice) Name() string { return d.name }

func (d *FakeDevice) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, ErrNotOpen
	}
	d.Reads++
	if d.ReadErr != nil {
		return nil, d.ReadErr
	}
	frame := d.frames[d.next%len(d.frames)]
	d.next++
	return frame, nil
}

// SetFrames replaces the served frames.
func (d *FakeDevice) SetFrames(frames ...image.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = frames
	d.next = 0
}

func (d *FakeDevice) Resolution() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return 0, 0
	}
	return d.width, d.height
}

func (d *FakeDevice) SetResolution(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", width, height)
	}
	d.width, d.height = width, height
	return nil
}

// FakeOpener yields the given devices by index and a failing device past the end.
func FakeOpener(devices ...*FakeDevice) Opener {
	return func(index int) Device {
		if index < len(devices) {
			return devices[index]
		}
		missing := NewFakeDevice(fmt.Sprintf("USB Camera %d", index))
		missing.OpenErr = errors.New("no device")
		return missing
	}
}
