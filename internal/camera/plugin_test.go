package camera_test

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"testing"

	"camqc-backend/internal/camera"
	"camqc-backend/internal/capture"
	"camqc-backend/plugin/shared"

	"github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driverStub plays the plugin process: one attached camera at index 0.
type driverStub struct {
	open map[int]bool
	size shared.Size
}

func (d *driverStub) Open(index int) (string, error) {
	if index != 0 {
		return "", errors.New("no device")
	}
	d.open[index] = true
	return "Stub Camera", nil
}

func (d *driverStub) Close(index int) error {
	delete(d.open, index)
	return nil
}

func (d *driverStub) Capture(index int) ([]byte, error) {
	if !d.open[index] {
		return nil, fmt.Errorf("camera %d is not open", index)
	}
	return capture.EncodeJPEG(camera.SolidFrame(d.size.Width, d.size.Height, color.White))
}

func (d *driverStub) Resolution(index int) (shared.Size, error) {
	return d.size, nil
}

func (d *driverStub) SetResolution(index int, size shared.Size) error {
	d.size = size
	return nil
}

func TestPluginDriverOverRPC(t *testing.T) {
	stub := &driverStub{open: map[int]bool{}, size: shared.Size{Width: 64, Height: 48}}

	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		shared.CameraPluginName: &shared.CameraPlugin{Impl: stub},
	}, nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense(shared.CameraPluginName)
	require.NoError(t, err)
	cam, ok := raw.(shared.Camera)
	require.True(t, ok)

	driver := camera.NewPluginDriver(nil, cam)
	defer driver.Kill()

	m := camera.NewManager(driver.Opener(), 3)
	infos := m.Rediscover()
	require.Len(t, infos, 1)
	assert.Equal(t, "Stub Camera", infos[0].Name)
	assert.Equal(t, 64, infos[0].Width)

	dev, err := m.Acquire(0)
	require.NoError(t, err)

	require.NoError(t, dev.SetResolution(80, 60))
	frame, err := dev.CaptureFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80, frame.Bounds().Dx())
	assert.Equal(t, 60, frame.Bounds().Dy())

	m.Release(dev)
	assert.False(t, dev.IsOpen())
	_, err = dev.CaptureFrame(context.Background())
	assert.ErrorIs(t, err, camera.ErrNotOpen)
}
