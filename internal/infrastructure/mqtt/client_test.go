package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "graylogic-insteon-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(testConfig(), nil)

	if len(opts.Servers) != 1 {
		t.Fatalf("len(Servers) = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://broker.local:1883" {
		t.Errorf("Servers[0] = %q, want %q", got, "tcp://broker.local:1883")
	}
	if opts.ClientID != "graylogic-insteon-test" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "graylogic-insteon-test")
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig should be nil without TLS")
	}
	if opts.WillEnabled {
		t.Error("WillEnabled should be false without a will")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
	if opts.ConnectRetryInterval != time.Second {
		t.Errorf("ConnectRetryInterval = %v, want 1s", opts.ConnectRetryInterval)
	}
	if opts.MaxReconnectInterval != time.Minute {
		t.Errorf("MaxReconnectInterval = %v, want 1m", opts.MaxReconnectInterval)
	}
}

func TestBuildClientOptionsTLSAndAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}

	opts := buildClientOptions(cfg, nil)

	if got := opts.Servers[0].String(); got != "ssl://broker.local:8883" {
		t.Errorf("Servers[0] = %q, want %q", got, "ssl://broker.local:8883")
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig should be set with TLS")
	}
	if opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("MinVersion = %x, want %x", opts.TLSConfig.MinVersion, tlsMinVersion)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want bridge/secret", opts.Username, opts.Password)
	}
}

func TestBuildClientOptionsWill(t *testing.T) {
	will := &Will{Topic: "graylogic/health/insteon", Payload: []byte(`{"status":"offline"}`)}
	opts := buildClientOptions(testConfig(), will)

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != will.Topic {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, will.Topic)
	}
	if string(opts.WillPayload) != string(will.Payload) {
		t.Errorf("WillPayload = %s, want %s", opts.WillPayload, will.Payload)
	}
	if opts.WillQos != 1 {
		t.Errorf("WillQos = %d, want 1", opts.WillQos)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
}

func TestBuildClientOptionsEmptyWillTopic(t *testing.T) {
	opts := buildClientOptions(testConfig(), &Will{Payload: []byte("x")})
	if opts.WillEnabled {
		t.Error("WillEnabled should be false for an empty will topic")
	}
}

func TestPublishValidation(t *testing.T) {
	c := newClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		wantErr error
	}{
		{"empty topic", "", 1, nil, ErrInvalidTopic},
		{"qos too high", "a/b", 3, nil, ErrInvalidQoS},
		{"payload too large", "a/b", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "a/b", 1, []byte("{}"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newClient(testConfig())
	handler := func(string, []byte) {}

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler func(string, []byte)
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"qos too high", "a/#", 5, handler, ErrInvalidQoS},
		{"nil handler", "a/#", 1, nil, ErrSubscribeFailed},
		{"not connected", "a/#", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if n := c.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after failed subscribes", n)
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	c := newClient(testConfig())

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want %v", err, ErrInvalidTopic)
	}
	if err := c.Unsubscribe("a/b"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want %v", err, ErrNotConnected)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := newClient(testConfig())

	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want %v", err, ErrNotConnected)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c := newClient(testConfig())

	var connects int
	var lost error
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(err error) { lost = err })

	c.handleConnect()
	if connects != 1 {
		t.Errorf("onConnect calls = %d, want 1", connects)
	}

	wantErr := errors.New("connection reset")
	c.handleDisconnect(wantErr)
	if !errors.Is(lost, wantErr) {
		t.Errorf("onDisconnect error = %v, want %v", lost, wantErr)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}

func TestWrapHandler(t *testing.T) {
	c := newClient(testConfig())

	var gotTopic, gotPayload string
	wrapped := c.wrapHandler(func(topic string, payload []byte) {
		gotTopic = topic
		gotPayload = string(payload)
	})

	wrapped(nil, fakeMessage{topic: "graylogic/command/insteon/1A.2B.3C", payload: []byte(`{"command":"on"}`)})

	if gotTopic != "graylogic/command/insteon/1A.2B.3C" {
		t.Errorf("topic = %q", gotTopic)
	}
	if gotPayload != `{"command":"on"}` {
		t.Errorf("payload = %q", gotPayload)
	}
}

func TestWrapHandlerRecoversPanic(t *testing.T) {
	c := newClient(testConfig())
	logger := &recordingLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(string, []byte) {
		panic("boom")
	})

	var msg pahomqtt.Message = fakeMessage{topic: "x/y"}
	wrapped(nil, msg)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("logged errors = %v, want one panic entry", logger.errors)
	}
}
