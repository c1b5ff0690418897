// Package influxdb records Insteon bridge telemetry in InfluxDB v2.
//
// Two kinds of points are written:
//   - insteon_state: one point per device state update, tagged with
//     device_id and address.
//   - insteon_modem: modem traffic counters, written with every health
//     report and tagged with bridge_id.
//
// Telemetry is optional. Connect returns ErrDisabled when influxdb.enabled
// is false, and the bridge runs without it.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Writes are non-blocking and batched (batch_size, flush_interval).
package influxdb
