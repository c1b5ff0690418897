package plm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// Additional host command bytes not needed by the insteon package.
const (
	cmdStartAllLink  byte = 0x64
	cmdCancelAllLink byte = 0x65
	cmdResetIM       byte = 0x67
	cmdSetIMConfig   byte = 0x6B
	cmdGetIMConfig   byte = 0x73
)

// frameLengths is the total frame length (including 0x02 and the command
// byte) for every command the modem may send. Echoes of host commands
// include the trailing ACK/NAK.
var frameLengths = map[byte]int{
	insteon.CmdStandardReceived: 11,
	insteon.CmdExtendedReceived: 25,
	insteon.CmdX10Received:      4,
	insteon.CmdAllLinkComplete:  10,
	insteon.CmdButtonEvent:      3,
	insteon.CmdUserReset:        2,
	insteon.CmdAllLinkFailure:   7,
	insteon.CmdAllLinkRecord:    10,
	insteon.CmdAllLinkStatus:    3,
	insteon.CmdGetIMInfo:        9,
	insteon.CmdSendAllLink:      6,
	insteon.CmdSendInsteon:      9,
	insteon.CmdSendX10:          5,
	cmdStartAllLink:             5,
	cmdCancelAllLink:            3,
	cmdResetIM:                  3,
	insteon.CmdGetFirstAllLink:  3,
	insteon.CmdGetNextAllLink:   3,
	cmdSetIMConfig:              4,
	cmdGetIMConfig:              6,
}

// extendedEchoLen is the length of a 0x62 echo carrying extended data.
const extendedEchoLen = 23

// isEcho reports whether cmd is a host command echoed by the modem.
func isEcho(cmd byte) bool {
	return cmd >= insteon.CmdGetIMInfo
}

// frameReader splits the modem byte stream into frames.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// next returns the next complete frame. Bytes before a frame start are
// discarded; a lone NAK (modem busy) is returned as a one-byte frame.
// ErrUnknownCommand is recoverable: the reader has already skipped the
// offending command byte.
func (fr *frameReader) next() ([]byte, error) {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch b {
		case insteon.FrameStart:
		case insteon.NAK:
			return []byte{insteon.NAK}, nil
		default:
			continue
		}

		cmd, err := fr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		n, ok := frameLengths[cmd]
		if !ok {
			return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, cmd)
		}

		frame := make([]byte, n, max(n, extendedEchoLen))
		frame[0], frame[1] = insteon.FrameStart, cmd
		if _, err := io.ReadFull(fr.r, frame[2:]); err != nil {
			return nil, err
		}

		// A 0x62 echo is longer when the flags byte marks it extended.
		if cmd == insteon.CmdSendInsteon && frame[5]&insteon.FlagExtended != 0 {
			frame = frame[:extendedEchoLen]
			if _, err := io.ReadFull(fr.r, frame[n:]); err != nil {
				return nil, err
			}
		}
		return frame, nil
	}
}
