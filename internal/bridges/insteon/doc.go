// Package insteon bridges an Insteon PowerLinc Modem to the Gray Logic MQTT bus.
//
// The bridge translates between:
//   - MQTT commands from Core (graylogic/command/insteon/{address})
//   - Insteon and X10 frames sent through the modem
//   - Device state received from the modem (graylogic/state/insteon/{address})
//
// # Addresses
//
// Insteon devices use their canonical address (e.g. "1A.2B.3C"); X10 devices
// use house and unit (e.g. "A1"). Both appear verbatim as the last topic level.
//
// # Engines
//
// On start the bridge resolves the engine of every Insteon device. Resolved
// version bytes are cached in SQLite so restarts do not re-probe the network.
//
// # X10
//
// X10 commands address a house, not a unit. The bridge remembers the last
// unit addressed in each house and attributes the next command to it.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package insteon
