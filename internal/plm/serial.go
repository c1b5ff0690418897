package plm

import (
	"fmt"

	"go.bug.st/serial"
)

// defaultBaudRate is the fixed PLM line speed.
const defaultBaudRate = 19200

// SerialConfig configures the modem's serial port.
type SerialConfig struct {
	// Port is the device path, e.g. "/dev/ttyUSB0".
	Port string

	// BaudRate defaults to 19200.
	BaudRate int
}

// OpenSerial opens the modem serial port, 8N1.
func OpenSerial(cfg SerialConfig) (serial.Port, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("%w: serial port not configured", ErrNotConnected)
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return port, nil
}
