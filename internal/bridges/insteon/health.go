package insteon

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/plm"
)

// defaultHealthInterval is how often health is published when unset.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher publishes health messages. Typically the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// ModemStatus reports modem connectivity and traffic counters.
type ModemStatus interface {
	IsConnected() bool
	Stats() plm.Stats
}

// Telemetry receives device state updates and modem counters.
// Typically the InfluxDB client.
type Telemetry interface {
	WriteDeviceState(deviceID, address string, state map[string]any)
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// measurementModem holds modem counters written with every health report.
const measurementModem = "insteon_modem"

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID  string
	Version   string
	Port      string
	Interval  time.Duration
	Publisher HealthPublisher
	Modem     ModemStatus
	Telemetry Telemetry
}

// HealthReporter publishes bridge health to MQTT at regular intervals.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	deviceCount   int
	deviceCountMu sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval == 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetDeviceCount updates the managed device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately and records
// modem counters when telemetry is configured.
func (h *HealthReporter) PublishNow() error {
	h.recordModemStats()
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) recordModemStats() {
	if h.cfg.Telemetry == nil || h.cfg.Modem == nil {
		return
	}
	stats := h.cfg.Modem.Stats()
	h.cfg.Telemetry.WritePoint(measurementModem,
		map[string]string{"bridge_id": h.cfg.BridgeID},
		map[string]any{
			"connected":      stats.Connected,
			"frames_tx":      stats.FramesTx,
			"frames_rx":      stats.FramesRx,
			"frames_dropped": stats.FramesDropped,
			"naks_total":     stats.NAKsTotal,
			"errors_total":   stats.ErrorsTotal,
		})
}

// LWTPayload returns the Last Will and Testament payload.
func LWTPayload(bridgeID string) ([]byte, error) {
	return json.Marshal(NewLWTMessage(bridgeID))
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.cfg.Modem == nil || !h.cfg.Modem.IsConnected() {
		return HealthDegraded, "modem disconnected"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}

	h.deviceCountMu.RLock()
	deviceCount := h.deviceCount
	h.deviceCountMu.RUnlock()

	var stats plm.Stats
	if h.cfg.Modem != nil {
		stats = h.cfg.Modem.Stats()
	}

	msg := NewHealthMessage(h.cfg.BridgeID, h.cfg.Version, status, stats, deviceCount, h.startTime)
	msg.Reason = reason
	msg.Connection.Port = h.cfg.Port

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(HealthTopic(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
