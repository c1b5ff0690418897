package insteon

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds device-type descriptors keyed by product key.
// A Catalog is read-only after loading and safe for concurrent use.
type Catalog struct {
	products map[string]catalogProduct
}

type catalogProduct struct {
	Key         string `yaml:"key"`
	Category    byte   `yaml:"category"`
	SubCategory byte   `yaml:"sub_category"`
	DeviceType  `yaml:",inline"`
}

type catalogFile struct {
	Products []catalogProduct `yaml:"products"`
}

// LoadCatalog reads and parses a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML of the form:
//
//	products:
//	  - key: "2477D"
//	    name: SwitchLinc Dimmer
//	    category: 0x01
//	    features: {dimmer: dimmer}
//	    flags: {dual_band: true}
//
// Every product needs a key and a name, and keys must be unique.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	c := &Catalog{products: make(map[string]catalogProduct, len(file.Products))}
	var errs []string
	for i, p := range file.Products {
		p.Key = strings.TrimSpace(p.Key)
		switch {
		case p.Key == "":
			errs = append(errs, fmt.Sprintf("products[%d]: key is required", i))
			continue
		case p.Name == "":
			errs = append(errs, fmt.Sprintf("products[%d] %q: name is required", i, p.Key))
			continue
		}
		if _, dup := c.products[p.Key]; dup {
			errs = append(errs, fmt.Sprintf("products[%d]: duplicate key %q", i, p.Key))
			continue
		}
		c.products[p.Key] = p
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.New(strings.Join(errs, "; ")))
	}
	return c, nil
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// Lookup returns a copy of the device type for productKey.
func (c *Catalog) Lookup(productKey string) (*DeviceType, bool) {
	p, ok := c.products[productKey]
	if !ok {
		return nil, false
	}
	dt := p.DeviceType
	dt.Flags = copyFlags(p.Flags)
	if p.Features != nil {
		dt.Features = make(map[string]string, len(p.Features))
		for k, v := range p.Features {
			dt.Features[k] = v
		}
	}
	return &dt, true
}

// ProductData builds product data for productKey. An unknown key yields
// product data with a nil DeviceType, i.e. no features and default flags.
func (c *Catalog) ProductData(productKey string) *ProductData {
	pd := &ProductData{ProductKey: productKey}
	p, ok := c.products[productKey]
	if !ok {
		return pd
	}
	pd.Category = p.Category
	pd.SubCategory = p.SubCategory
	pd.Model = p.Model
	pd.Description = p.Description
	pd.DeviceType, _ = c.Lookup(productKey)
	return pd
}
