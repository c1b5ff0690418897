package insteon

import "fmt"

// PLM serial frame bytes.
const (
	// FrameStart begins every frame exchanged with the modem.
	FrameStart byte = 0x02

	// ACK and NAK terminate the modem's echo of a host command.
	ACK byte = 0x06
	NAK byte = 0x15
)

// PLM command bytes (second byte of a frame).
const (
	CmdStandardReceived byte = 0x50
	CmdExtendedReceived byte = 0x51
	CmdX10Received      byte = 0x52
	CmdAllLinkComplete  byte = 0x53
	CmdButtonEvent      byte = 0x54
	CmdUserReset        byte = 0x55
	CmdAllLinkFailure   byte = 0x56
	CmdAllLinkRecord    byte = 0x57
	CmdAllLinkStatus    byte = 0x58
	CmdGetIMInfo        byte = 0x60
	CmdSendAllLink      byte = 0x61
	CmdSendInsteon      byte = 0x62
	CmdSendX10          byte = 0x63
	CmdGetFirstAllLink  byte = 0x69
	CmdGetNextAllLink   byte = 0x6A
)

// Message flag bits.
const (
	FlagBroadcast byte = 0x80
	FlagGroup     byte = 0x40
	FlagAck       byte = 0x20
	FlagExtended  byte = 0x10

	// flagsStandard is a direct message with 3 hops left of 3.
	flagsStandard byte = 0x0F
)

// Frame sizes.
const (
	// ExtendedDataLen is the number of user data bytes in an extended message.
	ExtendedDataLen = 14

	standardFrameLen = 8
	extendedFrameLen = standardFrameLen + ExtendedDataLen

	// standardReceivedLen is the payload of a 0x50 frame after the command byte.
	standardReceivedLen = 9
	extendedReceivedLen = standardReceivedLen + ExtendedDataLen
)

// InsteonCommand is a direct command to an Insteon device.
type InsteonCommand struct {
	Cmd1     byte
	Cmd2     byte
	Extended bool

	// Data is the extended user data (D1-D14). Ignored for standard commands.
	Data []byte
}

// Well-known Insteon commands.
var (
	CmdPing             = InsteonCommand{Cmd1: 0x0F}
	CmdGetEngineVersion = InsteonCommand{Cmd1: 0x0D}
	CmdLightOn          = InsteonCommand{Cmd1: 0x11, Cmd2: 0xFF}
	CmdLightOnFast      = InsteonCommand{Cmd1: 0x12, Cmd2: 0xFF}
	CmdLightOff         = InsteonCommand{Cmd1: 0x13}
	CmdLightOffFast     = InsteonCommand{Cmd1: 0x14}
	CmdLightBrighten    = InsteonCommand{Cmd1: 0x15}
	CmdLightDim         = InsteonCommand{Cmd1: 0x16}
	CmdStatusRequest    = InsteonCommand{Cmd1: 0x19}
	CmdExtendedGetSet   = InsteonCommand{Cmd1: 0x2E, Extended: true}
)

// LightOnLevel returns a light-on command at the given level (0-255).
func LightOnLevel(level byte) InsteonCommand {
	return InsteonCommand{Cmd1: CmdLightOn.Cmd1, Cmd2: level}
}

// Checksum computes the extended message checksum over cmd1, cmd2 and user
// data bytes D1-D13: the two's complement of their sum.
func Checksum(cmd1, cmd2 byte, data []byte) byte {
	sum := cmd1 + cmd2
	for i := 0; i < len(data) && i < ExtendedDataLen-1; i++ {
		sum += data[i]
	}
	return ^sum + 1
}

// EncodeInsteonMessage encodes a send-message frame for the modem.
//
// Standard layout (8 bytes):
//
//	0x02 0x62 A1 A2 A3 flags cmd1 cmd2
//
// Extended messages append D1-D14. When the engine supports checksums D14
// is replaced by Checksum and callers may supply at most 13 data bytes.
//
// Returns ErrInvalidMessage if the data does not fit.
func EncodeInsteonMessage(to InsteonAddress, cmd InsteonCommand, engine Engine) ([]byte, error) {
	if !cmd.Extended {
		return []byte{FrameStart, CmdSendInsteon, to[0], to[1], to[2], flagsStandard, cmd.Cmd1, cmd.Cmd2}, nil
	}

	room := ExtendedDataLen
	if engine.SupportsChecksum() {
		room--
	}
	if len(cmd.Data) > room {
		return nil, fmt.Errorf("%w: %d data bytes exceed %d for engine %s", ErrInvalidMessage, len(cmd.Data), room, engine)
	}

	buf := make([]byte, extendedFrameLen)
	copy(buf, []byte{FrameStart, CmdSendInsteon, to[0], to[1], to[2], flagsStandard | FlagExtended, cmd.Cmd1, cmd.Cmd2})
	copy(buf[standardFrameLen:], cmd.Data)
	if engine.SupportsChecksum() {
		buf[extendedFrameLen-1] = Checksum(cmd.Cmd1, cmd.Cmd2, buf[standardFrameLen:])
	}
	return buf, nil
}

// EncodeX10Frames encodes the two send-X10 frames that address a unit and
// then deliver a command to its house code.
//
//	0x02 0x63 <house|unit> 0x00
//	0x02 0x63 <house|cmd>  0x80
func EncodeX10Frames(addr X10Address, cmd X10Command) ([][]byte, error) {
	if !addr.IsValid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidAddress, addr)
	}
	if _, ok := X10CommandFromCode(cmd.Code()); !ok {
		return nil, fmt.Errorf("%w: X10 command 0x%02X", ErrCodeNotFound, cmd.Code())
	}
	return [][]byte{
		{FrameStart, CmdSendX10, addr.Byte(), X10FlagAddress.Code()},
		{FrameStart, CmdSendX10, addr.HouseCode()<<4 | cmd.Code(), X10FlagCommand.Code()},
	}, nil
}

// Message is an Insteon message received from the modem.
type Message struct {
	From  InsteonAddress
	To    InsteonAddress
	Flags byte
	Cmd1  byte
	Cmd2  byte

	// Data holds D1-D14 for extended messages, nil otherwise.
	Data []byte
}

// ParseMessage parses a received 0x50 or 0x51 frame, including the leading
// 0x02 and command byte.
//
// Layout:
//
//	0x02 0x50 F1 F2 F3 T1 T2 T3 flags cmd1 cmd2 [D1-D14]
func ParseMessage(frame []byte) (Message, error) {
	if len(frame) < 2 || frame[0] != FrameStart {
		return Message{}, fmt.Errorf("%w: missing frame start", ErrInvalidMessage)
	}

	want := 0
	switch frame[1] {
	case CmdStandardReceived:
		want = 2 + standardReceivedLen
	case CmdExtendedReceived:
		want = 2 + extendedReceivedLen
	default:
		return Message{}, fmt.Errorf("%w: command 0x%02X is not a received message", ErrInvalidMessage, frame[1])
	}
	if len(frame) != want {
		return Message{}, fmt.Errorf("%w: length %d, want %d", ErrInvalidMessage, len(frame), want)
	}

	msg := Message{
		Flags: frame[8],
		Cmd1:  frame[9],
		Cmd2:  frame[10],
	}
	copy(msg.From[:], frame[2:5])
	copy(msg.To[:], frame[5:8])
	if frame[1] == CmdExtendedReceived {
		msg.Data = make([]byte, ExtendedDataLen)
		copy(msg.Data, frame[11:])
	}
	return msg, nil
}

// IsExtended reports whether the message carries extended data.
func (m Message) IsExtended() bool { return m.Flags&FlagExtended != 0 }

// IsBroadcast reports whether the message is a broadcast (not group) message.
func (m Message) IsBroadcast() bool { return m.Flags&(FlagBroadcast|FlagGroup) == FlagBroadcast }

// IsGroup reports whether the message is an ALL-Link group message.
func (m Message) IsGroup() bool { return m.Flags&FlagGroup != 0 }

// IsAck reports whether the message is a direct ACK.
func (m Message) IsAck() bool { return m.Flags&(FlagBroadcast|FlagGroup|FlagAck) == FlagAck }

// IsNak reports whether the message is a direct NAK.
func (m Message) IsNak() bool {
	return m.Flags&(FlagBroadcast|FlagGroup|FlagAck) == FlagBroadcast|FlagAck
}

// String returns a human-readable representation of the message.
func (m Message) String() string {
	return fmt.Sprintf("Message{From:%s, To:%s, Flags:0x%02X, Cmd1:0x%02X, Cmd2:0x%02X, Data:%X}",
		m.From, m.To, m.Flags, m.Cmd1, m.Cmd2, m.Data)
}

// X10Frame is one received X10 frame: either an address or a command.
type X10Frame struct {
	Raw  byte
	Flag X10Flag
}

// ParseX10Frame decodes the raw and flag bytes of a 0x52 frame.
// Returns ErrCodeNotFound if the flag byte is not a known X10 flag.
func ParseX10Frame(raw, flag byte) (X10Frame, error) {
	f, ok := X10FlagFromCode(flag)
	if !ok {
		return X10Frame{}, fmt.Errorf("%w: X10 flag 0x%02X", ErrCodeNotFound, flag)
	}
	return X10Frame{Raw: raw, Flag: f}, nil
}

// IsAddress reports whether the frame addresses a unit.
func (f X10Frame) IsAddress() bool { return f.Flag == X10FlagAddress }

// House returns the house letter carried in the high nibble.
func (f X10Frame) House() byte {
	return 'A' + x10NibbleIndex[f.Raw>>4]
}

// Address returns the addressed unit. Only meaningful for address frames.
func (f X10Frame) Address() X10Address {
	return X10AddressFromByte(f.Raw)
}

// Command returns the command of a command frame.
// Returns ErrCodeNotFound for address frames.
func (f X10Frame) Command() (X10Command, error) {
	if f.Flag != X10FlagCommand {
		return 0, fmt.Errorf("%w: frame is not a command frame", ErrCodeNotFound)
	}
	cmd, ok := X10CommandFromCode(f.Raw & 0x0F)
	if !ok {
		return 0, fmt.Errorf("%w: X10 command 0x%02X", ErrCodeNotFound, f.Raw&0x0F)
	}
	return cmd, nil
}
