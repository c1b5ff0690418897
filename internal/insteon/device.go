package insteon

import (
	"context"
	"fmt"
	"sort"
)

// Modem is the transport a device sends encoded frames through.
// A device does not own its modem; a nil Modem means none is attached.
type Modem interface {
	Send(ctx context.Context, frame []byte) error
}

// Handler frames protocol commands for one address family.
type Handler[A DeviceAddress, C any] interface {
	Encode(addr A, engine Engine, cmd C) ([][]byte, error)
}

// InsteonHandler frames Insteon direct commands.
type InsteonHandler struct{}

// Encode returns the single send-message frame for cmd.
func (InsteonHandler) Encode(addr InsteonAddress, engine Engine, cmd InsteonCommand) ([][]byte, error) {
	frame, err := EncodeInsteonMessage(addr, cmd, engine)
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// X10Handler frames X10 commands. X10 has no engine; it is ignored.
type X10Handler struct{}

// Encode returns the address frame followed by the command frame.
func (X10Handler) Encode(addr X10Address, _ Engine, cmd X10Command) ([][]byte, error) {
	return EncodeX10Frames(addr, cmd)
}

// Entity is the protocol-independent view of a device used by registry code.
type Entity interface {
	DeviceAddress() DeviceAddress
	ProductData() *ProductData
	Features() []*Feature
	Flag(name string) bool
	HasModem() bool
	SetModem(m Modem)
}

// Device is a controllable unit bound to one address family A and the
// command type C of its protocol handler.
//
// Device is not safe for concurrent mutation; its owner (normally a
// Registry) must serialise calls to the setters.
type Device[A DeviceAddress, C any] struct {
	address     A
	handler     Handler[A, C]
	modem       Modem
	productData *ProductData
	features    map[string]*Feature
	flags       map[string]bool

	engine         Engine
	engineResolved bool
}

// InsteonDevice is a device on the Insteon network.
type InsteonDevice = Device[InsteonAddress, InsteonCommand]

// X10Device is a device on the X10 powerline.
type X10Device = Device[X10Address, X10Command]

// MakeDevice builds a device. The modem and product data may be nil. When
// the product data declares a device type, its features and flags are
// instantiated immediately.
func MakeDevice[A DeviceAddress, C any](addr A, handler Handler[A, C], modem Modem, pd *ProductData) *Device[A, C] {
	d := &Device[A, C]{
		address:  addr,
		handler:  handler,
		modem:    modem,
		features: make(map[string]*Feature),
	}
	d.SetProductData(pd)
	if dt := pd.GetDeviceType(); dt != nil {
		d.InstantiateFeatures(dt)
		d.SetFlags(dt.Flags)
	}
	return d
}

// NewInsteonDevice builds an Insteon device.
func NewInsteonDevice(addr InsteonAddress, modem Modem, pd *ProductData) *InsteonDevice {
	return MakeDevice[InsteonAddress, InsteonCommand](addr, InsteonHandler{}, modem, pd)
}

// NewX10Device builds an X10 device.
func NewX10Device(addr X10Address, modem Modem, pd *ProductData) *X10Device {
	return MakeDevice[X10Address, X10Command](addr, X10Handler{}, modem, pd)
}

// Address returns the typed device address.
func (d *Device[A, C]) Address() A { return d.address }

// DeviceAddress returns the address as the common identity type.
func (d *Device[A, C]) DeviceAddress() DeviceAddress { return d.address }

// Modem returns the attached modem, or nil.
func (d *Device[A, C]) Modem() Modem { return d.modem }

// HasModem reports whether a modem is attached.
func (d *Device[A, C]) HasModem() bool { return d.modem != nil }

// SetModem attaches or (with nil) detaches the modem.
func (d *Device[A, C]) SetModem(m Modem) { d.modem = m }

// ProductData returns the product data, or nil.
func (d *Device[A, C]) ProductData() *ProductData { return d.productData }

// SetProductData replaces the product data. Features are not touched; call
// InstantiateFeatures to rebuild them.
func (d *Device[A, C]) SetProductData(pd *ProductData) { d.productData = pd }

// InstantiateFeatures replaces the feature set with the features declared
// by dt. Calling it again with the same descriptor yields the same set.
func (d *Device[A, C]) InstantiateFeatures(dt *DeviceType) {
	features := make(map[string]*Feature)
	if dt != nil {
		for name, typ := range dt.Features {
			features[name] = &Feature{Name: name, Type: typ}
		}
	}
	d.features = features
}

// Features returns the features sorted by name.
func (d *Device[A, C]) Features() []*Feature {
	out := make([]*Feature, 0, len(d.features))
	for _, f := range d.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Feature returns the named feature.
func (d *Device[A, C]) Feature(name string) (*Feature, bool) {
	f, ok := d.features[name]
	return f, ok
}

// SetFlags replaces the behavioural flags.
func (d *Device[A, C]) SetFlags(flags map[string]bool) { d.flags = copyFlags(flags) }

// Flag returns the named flag; unset flags are false.
func (d *Device[A, C]) Flag(name string) bool { return d.flags[name] }

// Flags returns a copy of the flags.
func (d *Device[A, C]) Flags() map[string]bool { return copyFlags(d.flags) }

// Engine returns the resolved engine, or EngineUnknown before resolution.
func (d *Device[A, C]) Engine() Engine { return d.engine }

// EngineResolved reports whether ResolveEngine has been called.
func (d *Device[A, C]) EngineResolved() bool { return d.engineResolved }

// ResolveEngine records the engine for a version byte. The first call wins;
// later calls return the engine from the first resolution.
func (d *Device[A, C]) ResolveEngine(version byte) Engine {
	if !d.engineResolved {
		d.engine = ResolveEngine(version)
		d.engineResolved = true
	}
	return d.engine
}

// Send encodes cmd with the device's handler and writes every frame to the
// modem in order.
//
// Returns ErrNoModemAssigned if no modem is attached.
func (d *Device[A, C]) Send(ctx context.Context, cmd C) error {
	if d.modem == nil {
		return fmt.Errorf("%w: device %s", ErrNoModemAssigned, d.address)
	}

	frames, err := d.handler.Encode(d.address, d.engine, cmd)
	if err != nil {
		return fmt.Errorf("encoding for %s: %w", d.address, err)
	}

	for _, frame := range frames {
		if err := d.modem.Send(ctx, frame); err != nil {
			return fmt.Errorf("sending to %s: %w", d.address, err)
		}
	}
	return nil
}

// String returns a short description for logging.
func (d *Device[A, C]) String() string {
	return fmt.Sprintf("%s device %s", d.address.Protocol(), d.address)
}
