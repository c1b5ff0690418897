//go:build integration

package mqtt

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
)

// These tests require a running MQTT broker at 127.0.0.1:1883.
//
//	go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	client, err := Connect(integrationConfig("graylogic-insteon-int-roundtrip"), nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := "graylogic/int/insteon/roundtrip"
	received := make(chan string, 1)

	if err := client.Subscribe(topic, 1, func(_ string, payload []byte) {
		received <- string(payload)
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if n := client.SubscriptionCount(); n != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", n)
	}

	if err := client.Publish(topic, []byte("hello"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Errorf("payload = %q, want %q", got, "hello")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestIntegration_WillRegistered(t *testing.T) {
	will := &Will{Topic: "graylogic/int/insteon/will", Payload: []byte(`{"status":"offline"}`)}
	client, err := Connect(integrationConfig("graylogic-insteon-int-will"), will)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
}
