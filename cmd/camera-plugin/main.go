package main

import (
	"fmt"
	"sync"

	"camqc-backend/plugin/shared"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"gocv.io/x/gocv"
)

// usbCameras drives local capture devices through OpenCV.
type usbCameras struct {
	mu      sync.Mutex
	devices map[int]*gocv.VideoCapture
	logger  hclog.Logger
}

func (c *usbCameras) get(index int) (*gocv.VideoCapture, error) {
	dev, ok := c.devices[index]
	if !ok {
		return nil, fmt.Errorf("camera %d is not open", index)
	}
	return dev, nil
}

func (c *usbCameras) Open(index int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.devices[index]; ok {
		return fmt.Sprintf("USB Camera %d", index), nil
	}

	dev, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return "", fmt.Errorf("error opening camera %d: %w", index, err)
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if ok := dev.Read(&frame); !ok || frame.Empty() {
		dev.Close()
		return "", fmt.Errorf("camera %d opened but returned no frame", index)
	}

	c.devices[index] = dev
	c.logger.Info("opened camera", "index", index)
	return fmt.Sprintf("USB Camera %d", index), nil
}

func (c *usbCameras) Close(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, ok := c.devices[index]
	if !ok {
		return nil
	}
	delete(c.devices, index)
	return dev.Close()
}

func (c *usbCameras) Capture(index int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, err := c.get(index)
	if err != nil {
		return nil, err
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if ok := dev.Read(&frame); !ok || frame.Empty() {
		return nil, fmt.Errorf("failed to read frame from camera %d", index)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("error encoding frame: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

func (c *usbCameras) Resolution(index int) (shared.Size, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, err := c.get(index)
	if err != nil {
		return shared.Size{}, err
	}
	return shared.Size{
		Width:  int(dev.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(dev.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

func (c *usbCameras) SetResolution(index int, size shared.Size) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, err := c.get(index)
	if err != nil {
		return err
	}
	dev.Set(gocv.VideoCaptureFrameWidth, float64(size.Width))
	dev.Set(gocv.VideoCaptureFrameHeight, float64(size.Height))
	return nil
}

func main() {
	logger := hclog.New(&hclog.LoggerOptions{Name: "camera-plugin", Level: hclog.Info, JSONFormat: true})

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.Handshake,
		Plugins: map[string]plugin.Plugin{
			shared.CameraPluginName: &shared.CameraPlugin{Impl: &usbCameras{devices: make(map[int]*gocv.VideoCapture), logger: logger}},
		},
		Logger: logger,
	})
}
