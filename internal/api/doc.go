// Package api provides the local HTTP status API for the Insteon bridge.
//
// It is read-only. Installers use it to inspect configured devices with
// their resolved engines and features, the known scenes and modem traffic
// counters, and to follow state changes live over a WebSocket. Commands go
// through MQTT, never through this API.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Routes:
//
//	GET /api/v1/health
//	GET /api/v1/devices
//	GET /api/v1/devices/{address}
//	GET /api/v1/scenes
//	GET /api/v1/modem
//	GET /api/v1/ws              (WebSocket stream of device state events)
package api
