package insteon

import "fmt"

// X10Command is an X10 function code, carried in the low nibble of a
// command frame.
type X10Command byte

// X10 function codes.
const (
	X10AllUnitsOff     X10Command = 0x00
	X10AllLightsOn     X10Command = 0x01
	X10On              X10Command = 0x02
	X10Off             X10Command = 0x03
	X10Dim             X10Command = 0x04
	X10Bright          X10Command = 0x05
	X10AllLightsOff    X10Command = 0x06
	X10ExtendedCode    X10Command = 0x07
	X10HailRequest     X10Command = 0x08
	X10HailAcknowledge X10Command = 0x09
	X10PresetDim1      X10Command = 0x0A
	X10PresetDim2      X10Command = 0x0B
	X10ExtendedData    X10Command = 0x0C
	X10StatusOn        X10Command = 0x0D
	X10StatusOff       X10Command = 0x0E
	X10StatusRequest   X10Command = 0x0F
)

var x10CommandNames = [...]string{
	X10AllUnitsOff:     "ALL_UNITS_OFF",
	X10AllLightsOn:     "ALL_LIGHTS_ON",
	X10On:              "ON",
	X10Off:             "OFF",
	X10Dim:             "DIM",
	X10Bright:          "BRIGHT",
	X10AllLightsOff:    "ALL_LIGHTS_OFF",
	X10ExtendedCode:    "EXTENDED_CODE",
	X10HailRequest:     "HAIL_REQUEST",
	X10HailAcknowledge: "HAIL_ACKNOWLEDGE",
	X10PresetDim1:      "PRESET_DIM_1",
	X10PresetDim2:      "PRESET_DIM_2",
	X10ExtendedData:    "EXTENDED_DATA",
	X10StatusOn:        "STATUS_ON",
	X10StatusOff:       "STATUS_OFF",
	X10StatusRequest:   "STATUS_REQUEST",
}

// AllX10Commands returns every X10 command in code order.
func AllX10Commands() []X10Command {
	cmds := make([]X10Command, len(x10CommandNames))
	for i := range x10CommandNames {
		cmds[i] = X10Command(i) //nolint:gosec // bounded by table length
	}
	return cmds
}

// Code returns the wire code of the command.
func (c X10Command) Code() byte {
	return byte(c)
}

// X10CommandFromCode returns the command for a wire code. The boolean is
// false when no command uses that code; callers must treat that as a
// protocol anomaly rather than substitute a default.
func X10CommandFromCode(b byte) (X10Command, bool) {
	if int(b) >= len(x10CommandNames) {
		return 0, false
	}
	return X10Command(b), true
}

// String returns the command name.
func (c X10Command) String() string {
	if int(c) < len(x10CommandNames) {
		return x10CommandNames[c]
	}
	return fmt.Sprintf("X10Command(0x%02X)", byte(c))
}

// X10Flag distinguishes the two frames of an X10 transmission.
type X10Flag byte

// X10 frame flags.
const (
	X10FlagAddress X10Flag = 0x00
	X10FlagCommand X10Flag = 0x80
)

// Code returns the wire code of the flag.
func (f X10Flag) Code() byte {
	return byte(f)
}

// X10FlagFromCode returns the flag for a wire code, or false if unknown.
func X10FlagFromCode(b byte) (X10Flag, bool) {
	switch X10Flag(b) {
	case X10FlagAddress, X10FlagCommand:
		return X10Flag(b), true
	default:
		return 0, false
	}
}

// String returns the flag name.
func (f X10Flag) String() string {
	switch f {
	case X10FlagAddress:
		return "ADDRESS"
	case X10FlagCommand:
		return "COMMAND"
	default:
		return fmt.Sprintf("X10Flag(0x%02X)", byte(f))
	}
}

// x10Nibbles maps a house letter offset (A=0) or unit offset (1=0) to its
// 4-bit wire code. X10 uses the same scrambled table for both.
var x10Nibbles = [16]byte{
	0x6, 0xE, 0x2, 0xA, 0x1, 0x9, 0x5, 0xD,
	0x7, 0xF, 0x3, 0xB, 0x0, 0x8, 0x4, 0xC,
}

// x10NibbleIndex is the inverse of x10Nibbles.
var x10NibbleIndex = [16]byte{
	0xC, 0x4, 0x2, 0xA, 0xE, 0x6, 0x0, 0x8,
	0xD, 0x5, 0x3, 0xB, 0xF, 0x7, 0x1, 0x9,
}
