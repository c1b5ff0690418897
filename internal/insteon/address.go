package insteon

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Protocol names the address family a device belongs to.
type Protocol string

// Protocol constants.
const (
	ProtocolInsteon Protocol = "insteon"
	ProtocolX10     Protocol = "x10"
)

// String returns the protocol name.
func (p Protocol) String() string { return string(p) }

// DeviceAddress is the network identity of a device.
//
// Implementations are comparable values: two addresses are equal exactly
// when they denote the same physical identity, and they hash consistently
// when used as map keys. Only InsteonAddress and X10Address implement it.
type DeviceAddress interface {
	fmt.Stringer
	Protocol() Protocol
	deviceAddress()
}

// InsteonAddress is a 3-byte Insteon device address, most significant byte first.
type InsteonAddress [3]byte

// insteonAddressLen is the number of raw bytes in an Insteon address.
const insteonAddressLen = 3

// ParseInsteonAddress parses an Insteon address string.
//
// Accepts formats:
//   - "1A.2B.3C" (canonical, any case)
//   - "1A2B3C"
//
// Returns ErrInvalidAddress if parsing fails.
func ParseInsteonAddress(s string) (InsteonAddress, error) {
	digits := s
	if strings.Contains(s, ".") {
		parts := strings.Split(s, ".")
		if len(parts) != insteonAddressLen {
			return InsteonAddress{}, fmt.Errorf("%w: expected AA.BB.CC, got %q", ErrInvalidAddress, s)
		}
		for _, p := range parts {
			if len(p) != 2 { //nolint:mnd // two hex digits per byte
				return InsteonAddress{}, fmt.Errorf("%w: expected AA.BB.CC, got %q", ErrInvalidAddress, s)
			}
		}
		digits = strings.Join(parts, "")
	}

	if len(digits) != insteonAddressLen*2 {
		return InsteonAddress{}, fmt.Errorf("%w: expected 3 hex bytes, got %q", ErrInvalidAddress, s)
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return InsteonAddress{}, fmt.Errorf("%w: %q is not hex", ErrInvalidAddress, s)
	}

	var addr InsteonAddress
	copy(addr[:], raw)
	return addr, nil
}

// InsteonAddressFromBytes builds an address from exactly 3 raw bytes, as
// carried in modem link-layer frames.
func InsteonAddressFromBytes(b []byte) (InsteonAddress, error) {
	if len(b) != insteonAddressLen {
		return InsteonAddress{}, fmt.Errorf("%w: expected 3 bytes, got %d", ErrInvalidAddress, len(b))
	}
	var addr InsteonAddress
	copy(addr[:], b)
	return addr, nil
}

// String returns the address in canonical form, e.g. "1A.2B.3C".
func (a InsteonAddress) String() string {
	return fmt.Sprintf("%02X.%02X.%02X", a[0], a[1], a[2])
}

// Bytes returns a copy of the raw address bytes.
func (a InsteonAddress) Bytes() []byte {
	return []byte{a[0], a[1], a[2]}
}

// Protocol returns ProtocolInsteon.
func (InsteonAddress) Protocol() Protocol { return ProtocolInsteon }

func (InsteonAddress) deviceAddress() {}

// MarshalText implements encoding.TextMarshaler.
func (a InsteonAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *InsteonAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseInsteonAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// X10Address is an X10 house code (A-P) and unit code (1-16).
//
// The fields are exported for literals and comparison. Values built by hand
// should be checked with IsValid; the wire encodings below are only defined
// for valid addresses.
type X10Address struct {
	House byte
	Unit  uint8
}

// X10 address limits.
const (
	minX10Unit = 1
	maxX10Unit = 16
)

// ParseX10Address parses an X10 address such as "A1" or "p16".
//
// Returns ErrInvalidAddress if the house letter is outside A-P or the unit
// is outside 1-16.
func ParseX10Address(s string) (X10Address, error) {
	if len(s) < 2 || len(s) > 3 {
		return X10Address{}, fmt.Errorf("%w: expected <house><unit>, got %q", ErrInvalidAddress, s)
	}

	house := s[0]
	if house >= 'a' && house <= 'p' {
		house -= 'a' - 'A'
	}
	if house < 'A' || house > 'P' {
		return X10Address{}, fmt.Errorf("%w: house code must be A-P, got %q", ErrInvalidAddress, s[:1])
	}

	unit, err := strconv.ParseUint(s[1:], 10, 8)
	if err != nil || unit < minX10Unit || unit > maxX10Unit {
		return X10Address{}, fmt.Errorf("%w: unit code must be %d-%d, got %q", ErrInvalidAddress, minX10Unit, maxX10Unit, s[1:])
	}

	return X10Address{House: house, Unit: uint8(unit)}, nil
}

// X10AddressFromByte decodes the wire byte of an X10 address frame.
// The high nibble carries the house code and the low nibble the unit code.
func X10AddressFromByte(b byte) X10Address {
	return X10Address{
		House: 'A' + x10NibbleIndex[b>>4],
		Unit:  1 + x10NibbleIndex[b&0x0F],
	}
}

// Byte returns the wire byte for an X10 address frame. The result is
// meaningless unless IsValid reports true.
func (a X10Address) Byte() byte {
	return a.HouseCode()<<4 | a.UnitCode()
}

// HouseCode returns the 4-bit wire code of the house letter. Valid addresses only.
func (a X10Address) HouseCode() byte {
	return x10Nibbles[(a.House-'A')&0x0F]
}

// UnitCode returns the 4-bit wire code of the unit number. Valid addresses only.
func (a X10Address) UnitCode() byte {
	return x10Nibbles[(a.Unit-1)&0x0F]
}

// String returns the address in canonical form, e.g. "A1".
func (a X10Address) String() string {
	return fmt.Sprintf("%c%d", a.House, a.Unit)
}

// IsValid reports whether the house and unit are in range.
func (a X10Address) IsValid() bool {
	return a.House >= 'A' && a.House <= 'P' && a.Unit >= minX10Unit && a.Unit <= maxX10Unit
}

// Protocol returns ProtocolX10.
func (X10Address) Protocol() Protocol { return ProtocolX10 }

func (X10Address) deviceAddress() {}

// MarshalText implements encoding.TextMarshaler.
func (a X10Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *X10Address) UnmarshalText(text []byte) error {
	parsed, err := ParseX10Address(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses either address family. Strings of the form
// <letter><number> are X10; everything else is parsed as Insteon.
func ParseAddress(s string) (DeviceAddress, error) {
	if looksLikeX10(s) {
		addr, err := ParseX10Address(s)
		if err != nil {
			return nil, err
		}
		return addr, nil
	}
	addr, err := ParseInsteonAddress(s)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

// looksLikeX10 reports whether s is a letter followed by one or two digits.
func looksLikeX10(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	c := s[0] | 0x20 // lower-case
	if c < 'a' || c > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
