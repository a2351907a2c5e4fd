package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// NetworkCamera polls a snapshot URL that returns a single JPEG or PNG frame,
// as offered by most IP cameras.
type NetworkCamera struct {
	mu     sync.Mutex
	url    string
	name   string
	client *resty.Client
	open   bool
	width  int
	height int
}

func NewNetworkCamera(name, url string) *NetworkCamera {
	return &NetworkCamera{
		url:    url,
		name:   name,
		client: resty.New().SetTimeout(5 * time.Second),
	}
}

func (c *NetworkCamera) fetch(ctx context.Context) (image.Image, error) {
	res, err := c.client.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("error fetching snapshot from %s: %w", c.url, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("snapshot request to %s returned status %d", c.url, res.StatusCode())
	}

	img, _, err := image.Decode(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("error decoding snapshot from %s: %w", c.url, err)
	}
	return img, nil
}

func (c *NetworkCamera) Open() error {
	img, err := c.fetch(context.Background())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.width, c.height = img.Bounds().Dx(), img.Bounds().Dy()
	return nil
}

func (c *NetworkCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *NetworkCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *NetworkCamera) Name() string { return c.name }

func (c *NetworkCamera) CaptureFrame(ctx context.Context) (image.Image, error) {
	if !c.IsOpen() {
		return nil, ErrNotOpen
	}
	return c.fetch(ctx)
}

func (c *NetworkCamera) Resolution() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return 0, 0
	}
	return c.width, c.height
}

// SetResolution is not supported; snapshot cameras choose their own size.
func (c *NetworkCamera) SetResolution(width, height int) error {
	if !c.IsOpen() {
		return ErrNotOpen
	}
	return fmt.Errorf("network camera %s does not support changing resolution", c.name)
}
