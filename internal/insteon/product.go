package insteon

import (
	"fmt"
	"maps"
)

// DeviceType is a declarative description of a product: which features it
// exposes and which behavioural flags apply. It is supplied by a Catalog
// and never modified after loading.
type DeviceType struct {
	Name        string `yaml:"name"`
	Model       string `yaml:"model"`
	Description string `yaml:"description"`

	// Features maps feature name to feature type, e.g. "dimmer": "dimmer".
	Features map[string]string `yaml:"features"`

	// Flags are behavioural switches, e.g. "battery_powered": true.
	Flags map[string]bool `yaml:"flags"`
}

// ProductData identifies the product behind a device.
type ProductData struct {
	ProductKey      string
	Category        byte
	SubCategory     byte
	Description     string
	Model           string
	FirmwareVersion byte

	// DeviceType may be nil when the product is not in the catalog.
	DeviceType *DeviceType
}

// GetDeviceType returns the device-type descriptor, or nil if absent.
// Safe to call on a nil receiver.
func (p *ProductData) GetDeviceType() *DeviceType {
	if p == nil {
		return nil
	}
	return p.DeviceType
}

// String returns a short description for logging.
func (p *ProductData) String() string {
	if p == nil {
		return "ProductData{}"
	}
	return fmt.Sprintf("ProductData{Key:%s, Cat:0x%02X, SubCat:0x%02X, Model:%q}",
		p.ProductKey, p.Category, p.SubCategory, p.Model)
}

// Feature is one unit of device functionality, such as a switch or a
// dimmer channel.
type Feature struct {
	Name string
	Type string
}

// copyFlags returns an independent copy of a flag map (nil stays nil).
func copyFlags(flags map[string]bool) map[string]bool {
	if flags == nil {
		return nil
	}
	return maps.Clone(flags)
}
