// Package mqtt connects the Insteon bridge to the Gray Logic MQTT broker.
//
// It wraps paho.mqtt.golang with auto-reconnect, subscriptions that survive
// reconnects, handler panic recovery, and a Last Will and Testament so Core
// sees the bridge go offline if the process dies.
//
// Usage:
//
//	lwt, _ := insteonbridge.LWTPayload(cfg.Bridge.ID)
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{Topic: insteonbridge.HealthTopic(), Payload: lwt})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// TLS should be enabled (mqtt.broker.tls) whenever the broker is not local.
package mqtt
