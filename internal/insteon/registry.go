package insteon

import (
	"fmt"
	"sort"
	"sync"
)

// Logger is the logging interface used by the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry owns the known devices and scenes. Devices are keyed by their
// address, so an Insteon and an X10 device never collide.
//
// Thread Safety: all methods are safe for concurrent use. Devices returned
// by the getters must only be mutated through Update.
type Registry struct {
	mu      sync.RWMutex
	devices map[DeviceAddress]Entity
	scenes  map[int]*Scene
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[DeviceAddress]Entity),
		scenes:  make(map[int]*Scene),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Add registers a device. Returns ErrDeviceExists if its address is taken.
func (r *Registry) Add(dev Entity) error {
	addr := dev.DeviceAddress()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[addr]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, addr)
	}
	r.devices[addr] = dev
	r.logger.Debug("device added", "address", addr.String(), "protocol", addr.Protocol().String())
	return nil
}

// Get returns the device at addr.
func (r *Registry) Get(addr DeviceAddress) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	return dev, nil
}

// InsteonDevice returns the Insteon device at addr.
func (r *Registry) InsteonDevice(addr InsteonAddress) (*InsteonDevice, error) {
	dev, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	d, ok := dev.(*InsteonDevice)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an Insteon device", ErrDeviceNotFound, addr)
	}
	return d, nil
}

// X10Device returns the X10 device at addr.
func (r *Registry) X10Device(addr X10Address) (*X10Device, error) {
	dev, err := r.Get(addr)
	if err != nil {
		return nil, err
	}
	d, ok := dev.(*X10Device)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an X10 device", ErrDeviceNotFound, addr)
	}
	return d, nil
}

// Remove deletes the device at addr.
func (r *Registry) Remove(addr DeviceAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	delete(r.devices, addr)
	r.logger.Debug("device removed", "address", addr.String())
	return nil
}

// Update runs fn on the device at addr while holding the write lock.
func (r *Registry) Update(addr DeviceAddress, fn func(Entity) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	return fn(dev)
}

// View runs fn on the device at addr while holding the read lock. fn must
// not mutate the device; sending through it is allowed.
func (r *Registry) View(addr DeviceAddress, fn func(Entity) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	return fn(dev)
}

// List returns all devices sorted by address string.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	out := make([]Entity, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, dev)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].DeviceAddress().String() < out[j].DeviceAddress().String()
	})
	return out
}

// Count returns the number of devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// AddScene registers a scene. Returns ErrSceneExists if the group is taken.
func (r *Registry) AddScene(s *Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scenes[s.Group()]; exists {
		return fmt.Errorf("%w: group %d", ErrSceneExists, s.Group())
	}
	r.scenes[s.Group()] = s
	return nil
}

// Scene returns the scene for group.
func (r *Registry) Scene(group int) (*Scene, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scenes[group]
	if !ok {
		return nil, fmt.Errorf("%w: group %d", ErrSceneNotFound, group)
	}
	return s, nil
}

// Scenes returns all scenes sorted by group.
func (r *Registry) Scenes() []*Scene {
	r.mu.RLock()
	out := make([]*Scene, 0, len(r.scenes))
	for _, s := range r.scenes {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Group() < out[j].Group() })
	return out
}

// AttachModem sets m on every registered device. If m can also refresh
// scenes it is attached to every scene. Passing nil detaches.
func (r *Registry) AttachModem(m Modem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dev := range r.devices {
		dev.SetModem(m)
	}
	refresher, _ := m.(SceneRefresher)
	for _, s := range r.scenes {
		s.SetRefresher(refresher)
	}
	r.logger.Info("modem attached", "devices", len(r.devices), "scenes", len(r.scenes))
}
