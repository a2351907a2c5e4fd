package shared

import "net/rpc"

type SetResolutionArgs struct {
	Index int
	Size  Size
}

// RPCClient is the backend side of the camera plugin.
type RPCClient struct{ client *rpc.Client }

func (c *RPCClient) Open(index int) (string, error) {
	var name string
	err := c.client.Call("Plugin.Open", index, &name)
	return name, err
}

func (c *RPCClient) Close(index int) error {
	var ok bool
	return c.client.Call("Plugin.Close", index, &ok)
}

func (c *RPCClient) Capture(index int) ([]byte, error) {
	var frame []byte
	err := c.client.Call("Plugin.Capture", index, &frame)
	return frame, err
}

func (c *RPCClient) Resolution(index int) (Size, error) {
	var size Size
	err := c.client.Call("Plugin.Resolution", index, &size)
	return size, err
}

func (c *RPCClient) SetResolution(index int, size Size) error {
	var ok bool
	return c.client.Call("Plugin.SetResolution", SetResolutionArgs{Index: index, Size: size}, &ok)
}

// RPCServer runs inside the driver process and conforms to net/rpc.
type RPCServer struct {
	Impl Camera
}

func (s *RPCServer) Open(index int, name *string) error {
	v, err := s.Impl.Open(index)
	*name = v
	return err
}

func (s *RPCServer) Close(index int, ok *bool) error {
	err := s.Impl.Close(index)
	*ok = err == nil
	return err
}

func (s *RPCServer) Capture(index int, frame *[]byte) error {
	v, err := s.Impl.Capture(index)
	*frame = v
	return err
}

func (s *RPCServer) Resolution(index int, size *Size) error {
	v, err := s.Impl.Resolution(index)
	*size = v
	return err
}

func (s *RPCServer) SetResolution(args SetResolutionArgs, ok *bool) error {
	err := s.Impl.SetResolution(args.Index, args.Size)
	*ok = err == nil
	return err
}
