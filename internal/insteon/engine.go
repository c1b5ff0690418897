package insteon

// Engine is the Insteon protocol engine generation of a device.
//
// The only wire difference callers need to care about is whether extended
// messages carry a trailing checksum byte; see SupportsChecksum.
type Engine uint8

// Engine values. The zero value is EngineUnknown so an engine that has not
// been resolved is never mistaken for I1.
const (
	EngineUnknown Engine = iota
	EngineI1
	EngineI2
	EngineI2CS
)

// Engine version bytes as reported in the cmd2 of an engine version ACK.
const (
	versionI1      byte = 0x00
	versionI2      byte = 0x01
	versionI2CS    byte = 0x02
	versionUnknown byte = 0xFF
)

// ResolveEngine maps a version byte onto an Engine. It never fails:
// unrecognised bytes resolve to EngineUnknown.
func ResolveEngine(version byte) Engine {
	switch version {
	case versionI1:
		return EngineI1
	case versionI2:
		return EngineI2
	case versionI2CS:
		return EngineI2CS
	default:
		return EngineUnknown
	}
}

// Version returns the wire version byte of the engine.
func (e Engine) Version() byte {
	switch e {
	case EngineI1:
		return versionI1
	case EngineI2:
		return versionI2
	case EngineI2CS:
		return versionI2CS
	default:
		return versionUnknown
	}
}

// SupportsChecksum reports whether extended messages to this engine carry a
// checksum in data byte 14. Unknown engines are assumed to need one.
func (e Engine) SupportsChecksum() bool {
	return e != EngineI1 && e != EngineI2
}

// String returns the engine name.
func (e Engine) String() string {
	switch e {
	case EngineI1:
		return "I1"
	case EngineI2:
		return "I2"
	case EngineI2CS:
		return "I2CS"
	default:
		return "UNKNOWN"
	}
}
