package camera_test

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"camqc-backend/internal/camera"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverStopsAtFirstMissingIndex(t *testing.T) {
	a := camera.NewFakeDevice("USB Camera 0")
	b := camera.NewFakeDevice("USB Camera 1")

	found := camera.Discover(camera.FakeOpener(a, b), 5)
	require.Len(t, found, 2)
	assert.True(t, a.IsOpen())
	assert.True(t, b.IsOpen())
}

func TestManagerAcquireIsExclusive(t *testing.T) {
	a := camera.NewFakeDevice("USB Camera 0", camera.SolidFrame(320, 240, color.White))
	m := camera.NewManager(camera.FakeOpener(a), 3)

	infos := m.Rediscover()
	require.Len(t, infos, 1)
	assert.Equal(t, camera.Info{Index: 0, Name: "USB Camera 0", Width: 320, Height: 240, Open: true}, infos[0])

	dev, err := m.Acquire(0)
	require.NoError(t, err)

	_, err = m.Acquire(0)
	assert.Error(t, err)

	_, err = m.Acquire(4)
	assert.ErrorIs(t, err, camera.ErrNotFound)

	frame, err := dev.CaptureFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 320, frame.Bounds().Dx())

	m.Release(dev)
	assert.False(t, a.IsOpen(), "released devices are closed")

	dev, err = m.Acquire(0)
	require.NoError(t, err)
	assert.True(t, dev.IsOpen())
}

func TestRediscoverKeepsHeldDevices(t *testing.T) {
	a := camera.NewFakeDevice("USB Camera 0")
	b := camera.NewFakeDevice("USB Camera 1")
	m := camera.NewManager(camera.FakeOpener(a, b), 3)
	m.Rediscover()

	held, err := m.Acquire(1)
	require.NoError(t, err)

	infos := m.Rediscover()
	require.Len(t, infos, 2)
	assert.True(t, b.IsOpen(), "held device is not closed by rediscovery")

	_, err = m.Acquire(1)
	assert.Error(t, err, "held device stays in use")

	frame, err := held.CaptureFrame(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, frame)
}

func TestRediscoverKeepsHeldDeviceBeyondFailedIndex(t *testing.T) {
	a := camera.NewFakeDevice("USB Camera 0")
	b := camera.NewFakeDevice("USB Camera 1")
	m := camera.NewManager(camera.FakeOpener(a, b), 3)
	m.Rediscover()

	held, err := m.Acquire(1)
	require.NoError(t, err)
	assert.Equal(t, 1, m.IndexOf(held))

	// camera 0 unplugged, so probing stops before the held camera
	a.OpenErr = errors.New("unplugged")
	infos := m.Rediscover()
	require.Len(t, infos, 1)
	assert.Equal(t, "USB Camera 1", infos[0].Name)
	assert.Equal(t, 0, m.IndexOf(held))
	assert.True(t, b.IsOpen())

	_, err = m.Acquire(0)
	assert.Error(t, err, "held device stays in use")

	m.Release(held)
	assert.Equal(t, -1, m.IndexOf(camera.NewFakeDevice("other")))
	dev, err := m.Acquire(0)
	require.NoError(t, err)
	assert.Same(t, b, dev)
}

func TestManagerNetworkCameras(t *testing.T) {
	net := camera.NewFakeDevice("Network Camera 1")
	m := camera.NewManager(camera.FakeOpener(), 1, net)

	infos := m.Rediscover()
	require.Len(t, infos, 1)
	assert.Equal(t, "Network Camera 1", infos[0].Name)

	dev, err := m.Acquire(0)
	require.NoError(t, err)
	assert.Same(t, net, dev)

	m.Close()
	assert.Empty(t, m.List())
}
