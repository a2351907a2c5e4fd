package camera

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Manager keeps the discovered devices plus any configured network cameras.
// Devices handed out by Acquire belong to the caller until Release.
type Manager struct {
	mu       sync.Mutex
	opener   Opener
	maxIndex int
	network  []Device

	devices []Device
	inUse   map[int]bool
}

func NewManager(opener Opener, maxIndex int, network ...Device) *Manager {
	return &Manager{
		opener:   opener,
		maxIndex: maxIndex,
		network:  network,
		inUse:    make(map[int]bool),
	}
}

// Rediscover closes the idle devices from the previous scan and probes again.
// Devices currently acquired by a session are kept, even when the probe stops
// before their old index; those are appended after the probed devices.
func (m *Manager) Rediscover() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make(map[int]Device)
	for i, dev := range m.devices {
		if m.isNetwork(dev) {
			continue
		}
		if m.inUse[i] {
			kept[i] = dev
			continue
		}
		if err := dev.Close(); err != nil {
			slog.Warn("error closing camera", "index", i, "error", err)
		}
	}

	var devices []Device
	if m.opener != nil {
		// a device held by a session counts as present without being reopened
		probe := func(index int) Device {
			if dev, ok := kept[index]; ok {
				return &heldDevice{Device: dev}
			}
			return m.opener(index)
		}
		for _, dev := range Discover(probe, m.maxIndex) {
			if held, ok := dev.(*heldDevice); ok {
				dev = held.Device
			}
			devices = append(devices, dev)
		}
	}

	indices := make([]int, 0, len(kept))
	for i := range kept {
		indices = append(indices, i)
	}
	slices.Sort(indices)
	for _, i := range indices {
		if !slices.Contains(devices, kept[i]) {
			slog.Warn("camera in use was not reached by discovery, keeping it", "old_index", i, "new_index", len(devices), "name", kept[i].Name())
			devices = append(devices, kept[i])
		}
	}

	for _, dev := range m.network {
		if m.isNetworkInUse(dev) {
			devices = append(devices, dev)
			continue
		}
		if !dev.IsOpen() {
			if err := dev.Open(); err != nil {
				slog.Warn("network camera unavailable", "name", dev.Name(), "error", err)
			}
		}
		devices = append(devices, dev)
	}

	inUse := make(map[int]bool)
	for i, dev := range devices {
		for _, held := range kept {
			if dev == held {
				inUse[i] = true
			}
		}
		if m.isNetworkInUse(dev) {
			inUse[i] = true
		}
	}

	m.devices = devices
	m.inUse = inUse
	return m.listLocked()
}

func (m *Manager) isNetwork(dev Device) bool {
	for _, n := range m.network {
		if n == dev {
			return true
		}
	}
	return false
}

func (m *Manager) isNetworkInUse(dev Device) bool {
	for i, d := range m.devices {
		if d == dev && m.inUse[i] {
			return true
		}
	}
	return false
}

// IndexOf returns the current index of dev, or -1 when it is not listed.
func (m *Manager) IndexOf(dev Device) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Index(m.devices, dev)
}

func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

func (m *Manager) listLocked() []Info {
	infos := make([]Info, 0, len(m.devices))
	for i, dev := range m.devices {
		infos = append(infos, Describe(i, dev))
	}
	return infos
}

// Acquire hands exclusive ownership of a device to the caller.
func (m *Manager) Acquire(index int) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.devices) {
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, index)
	}
	if m.inUse[index] {
		return nil, fmt.Errorf("camera %d is in use by another session", index)
	}

	dev := m.devices[index]
	if !dev.IsOpen() {
		if err := dev.Open(); err != nil {
			return nil, fmt.Errorf("error opening camera %d: %w", index, err)
		}
	}
	m.inUse[index] = true
	return dev, nil
}

// Release returns a device. The device is closed so the hardware is free
// until it is acquired again.
func (m *Manager) Release(dev Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.devices {
		if d == dev {
			delete(m.inUse, i)
		}
	}
	if err := dev.Close(); err != nil {
		slog.Warn("error closing camera", "name", dev.Name(), "error", err)
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, dev := range m.devices {
		if err := dev.Close(); err != nil {
			slog.Warn("error closing camera", "index", i, "error", err)
		}
	}
	m.devices = nil
	m.inUse = make(map[int]bool)
}

// heldDevice stands in for a device a session owns during rediscovery so the
// probe neither reopens nor closes it.
type heldDevice struct {
	Device
}

func (h *heldDevice) Open() error  { return nil }
func (h *heldDevice) Close() error { return nil }
