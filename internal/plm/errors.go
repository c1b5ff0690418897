package plm

import "errors"

// Transport errors.
var (
	// ErrNotConnected is returned when the serial port is closed or failed.
	ErrNotConnected = errors.New("plm: not connected")

	// ErrNAK is returned when the modem rejects a command.
	ErrNAK = errors.New("plm: command not acknowledged")

	// ErrBusy is returned when the modem answers with a bare NAK because its
	// buffer is full. The command was not accepted and may be retried.
	ErrBusy = errors.New("plm: modem busy")

	// ErrTimeout is returned when the modem does not echo a command in time.
	ErrTimeout = errors.New("plm: timed out waiting for modem")

	// ErrInvalidFrame is returned for frames the modem cannot accept.
	ErrInvalidFrame = errors.New("plm: invalid frame")

	// ErrUnknownCommand is returned by the reader for an unrecognised command byte.
	ErrUnknownCommand = errors.New("plm: unknown command byte")
)
