// Package plm talks to an Insteon PowerLinc Modem (PLM) over a serial port.
//
// The modem speaks a framed byte protocol. Every frame starts with 0x02
// followed by a command byte; the length of the rest is fixed per command.
// Host commands (0x60-0x7F) are echoed back by the modem with a trailing
// ACK (0x06) or NAK (0x15). Unsolicited frames (0x50-0x58) report traffic
// from the Insteon and X10 networks.
//
// # Usage
//
//	port, err := plm.OpenSerial(plm.SerialConfig{Port: "/dev/ttyUSB0"})
//	if err != nil { ... }
//	modem := plm.New(port, plm.Options{Logger: log})
//	modem.SetOnMessage(func(m insteon.Message) { ... })
//	modem.Start()
//	defer modem.Close()
//
//	err = modem.Send(ctx, frame)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Sends are serialised; only one
// host command is in flight at a time. Callbacks run on a single worker
// goroutine in the order frames were received.
package plm
