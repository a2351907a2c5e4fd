package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is shared by the backend and camera driver binaries. The cookie
// only guards against launching an unrelated executable.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CAMQC_CAMERA_PLUGIN",
	MagicCookieValue: "camera",
}

const CameraPluginName = "camera"

var PluginMap = map[string]plugin.Plugin{
	CameraPluginName: &CameraPlugin{},
}

type Size struct {
	Width  int
	Height int
}

// Camera is implemented by the driver process. Frames travel as JPEG bytes.
type Camera interface {
	Open(index int) (string, error)
	Close(index int) error
	Capture(index int) ([]byte, error)
	Resolution(index int) (Size, error)
	SetResolution(index int, size Size) error
}

type CameraPlugin struct {
	Impl Camera
}

func (p *CameraPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *CameraPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}
