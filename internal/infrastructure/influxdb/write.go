package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceState holds one point per published device state.
const MeasurementDeviceState = "insteon_state"

// WriteDeviceState records a device state update. Scalar state fields
// become point fields; nested values are skipped.
//
//	client.WriteDeviceState("lamp-living", "1A.2B.3C", map[string]any{"on": true, "level": 100})
func (c *Client) WriteDeviceState(deviceID, address string, state map[string]any) {
	if !c.IsConnected() {
		return
	}
	if p := statePoint(deviceID, address, state, time.Now()); p != nil {
		c.writeAPI.WritePoint(p)
	}
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// statePoint converts a state map to a point, or nil if no field is
// representable.
func statePoint(deviceID, address string, state map[string]any, ts time.Time) *write.Point {
	fields := make(map[string]any, len(state))
	for k, v := range state {
		switch val := v.(type) {
		case bool, string, float64, float32, int, int64, uint8, uint64:
			fields[k] = val
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"device_id": deviceID,
			"address":   address,
		},
		fields,
		ts,
	)
}
