package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os/exec"
	"sync"

	"camqc-backend/plugin/shared"

	"github.com/hashicorp/go-plugin"
)

// PluginDriver talks to an out-of-process camera driver. Calls are
// serialized because the driver handles one request at a time.
type PluginDriver struct {
	mu     sync.Mutex
	client *plugin.Client
	camera shared.Camera
}

func LaunchPlugin(path string) (*PluginDriver, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  shared.Handshake,
		Plugins:          shared.PluginMap,
		Cmd:              exec.Command(path),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error establishing RPC connection: %w", err)
	}

	raw, err := rpcClient.Dispense(shared.CameraPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", shared.CameraPluginName, err)
	}

	cam, ok := raw.(shared.Camera)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Camera (actual type: %T)", shared.CameraPluginName, raw)
	}

	return NewPluginDriver(client, cam), nil
}

// NewPluginDriver wraps an already dispensed camera; client may be nil.
func NewPluginDriver(client *plugin.Client, cam shared.Camera) *PluginDriver {
	return &PluginDriver{client: client, camera: cam}
}

func (p *PluginDriver) Opener() Opener {
	return func(index int) Device {
		return &pluginDevice{driver: p, index: index, name: fmt.Sprintf("USB Camera %d", index)}
	}
}

func (p *PluginDriver) Kill() {
	if p.client != nil {
		p.client.Kill()
	}
}

type pluginDevice struct {
	driver *PluginDriver
	index  int
	name   string
	open   bool
}

func (d *pluginDevice) Open() error {
	d.driver.mu.Lock()
	defer d.driver.mu.Unlock()

	name, err := d.driver.camera.Open(d.index)
	if err != nil {
		return fmt.Errorf("error opening camera %d: %w", d.index, err)
	}
	if name != "" {
		d.name = name
	}
	d.open = true
	return nil
}

func (d *pluginDevice) Close() error {
	d.driver.mu.Lock()
	defer d.driver.mu.Unlock()

	d.open = false
	return d.driver.camera.Close(d.index)
}

func (d *pluginDevice) IsOpen() bool {
	d.driver.mu.Lock()
	defer d.driver.mu.Unlock()
	return d.open
}

func (d *pluginDevice) Name() string { return d.name }

func (d *pluginDevice) CaptureFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.driver.mu.Lock()
	if !d.open {
		d.driver.mu.Unlock()
		return nil, ErrNotOpen
	}
	data, err := d.driver.camera.Capture(d.index)
	d.driver.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("error reading frame from camera %d: %w", d.index, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding frame from camera %d: %w", d.index, err)
	}
	return img, nil
}

func (d *pluginDevice) Resolution() (int, int) {
	d.driver.mu.Lock()
	defer d.driver.mu.Unlock()
	if !d.open {
		return 0, 0
	}
	size, err := d.driver.camera.Resolution(d.index)
	if err != nil {
		return 0, 0
	}
	return size.Width, size.Height
}

func (d *pluginDevice) SetResolution(width, height int) error {
	d.driver.mu.Lock()
	defer d.driver.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	return d.driver.camera.SetResolution(d.index, shared.Size{Width: width, Height: height})
}
