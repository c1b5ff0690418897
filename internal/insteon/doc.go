// Package insteon implements device addressing and wire encoding for
// Insteon and X10 devices reached through a PowerLinc Modem (PLM).
//
// The package is a pure value and codec layer. It owns no goroutines and
// performs no I/O; transports hand it raw bytes and take encoded frames back.
//
// # Addresses
//
// Two disjoint address families implement DeviceAddress:
//
//   - InsteonAddress: 3 raw bytes, written "AA.BB.CC"
//   - X10Address: house code A-P and unit code 1-16, written "A1"
//
// Both are comparable values, so they work directly as map keys:
//
//	addr, err := insteon.ParseAddress("1A.2B.3C")
//	if err != nil {
//	    return err
//	}
//	devices[addr] = dev
//
// # Engines
//
// Insteon firmware generations (I1, I2, I2CS) differ in whether extended
// messages carry a trailing checksum. ResolveEngine maps the version byte
// reported by a device onto an Engine; unrecognised bytes resolve to
// EngineUnknown, which assumes a checksum is present.
//
// # Devices and scenes
//
// Device is generic over the address family and the command type of its
// protocol handler. InsteonDevice and X10Device are the two instantiations.
// Registry code holds either through the Entity interface.
//
// # Thread Safety
//
// Addresses, engines and codes are immutable. Devices and scenes are not
// locked; Registry serialises mutation through Update.
package insteon
