package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	ins "github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/modem", s.handleModem)
		r.Get("/scenes", s.handleListScenes)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{address}", s.handleGetDevice)
		})
	})

	return r
}

// DeviceView is the JSON representation of a registered device.
type DeviceView struct {
	Address     string          `json:"address"`
	Protocol    string          `json:"protocol"`
	ProductKey  string          `json:"product_key,omitempty"`
	Model       string          `json:"model,omitempty"`
	Description string          `json:"description,omitempty"`
	Engine      string          `json:"engine,omitempty"`
	Resolved    bool            `json:"engine_resolved"`
	Features    []FeatureView   `json:"features"`
	Flags       map[string]bool `json:"flags"`
	HasModem    bool            `json:"has_modem"`
}

// FeatureView is one device feature.
type FeatureView struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ModemView reports modem connectivity and counters.
type ModemView struct {
	Connected     bool       `json:"connected"`
	FramesTx      uint64     `json:"frames_tx"`
	FramesRx      uint64     `json:"frames_rx"`
	FramesDropped uint64     `json:"frames_dropped"`
	NAKsTotal     uint64     `json:"naks_total"`
	ErrorsTotal   uint64     `json:"errors_total"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`
}

type engineReporter interface {
	Engine() ins.Engine
	EngineResolved() bool
}

type flagReporter interface {
	Flags() map[string]bool
}

// deviceView snapshots dev. Must be called under the registry lock.
func deviceView(dev ins.Entity) DeviceView {
	addr := dev.DeviceAddress()
	v := DeviceView{
		Address:  addr.String(),
		Protocol: addr.Protocol().String(),
		Features: []FeatureView{},
		Flags:    map[string]bool{},
		HasModem: dev.HasModem(),
	}

	if pd := dev.ProductData(); pd != nil {
		v.ProductKey = pd.ProductKey
		v.Model = pd.Model
		v.Description = pd.Description
	}
	for _, f := range dev.Features() {
		v.Features = append(v.Features, FeatureView{Name: f.Name, Type: f.Type})
	}
	if fr, ok := dev.(flagReporter); ok {
		if flags := fr.Flags(); flags != nil {
			v.Flags = flags
		}
	}
	if er, ok := dev.(engineReporter); ok && addr.Protocol() == ins.ProtocolInsteon {
		v.Engine = er.Engine().String()
		v.Resolved = er.EngineResolved()
	}
	return v
}

func (s *Server) viewDevice(addr ins.DeviceAddress) (DeviceView, error) {
	var v DeviceView
	err := s.registry.View(addr, func(dev ins.Entity) error {
		v = deviceView(dev)
		return nil
	})
	return v, err
}

// handleHealth checks every dependency and reports 503 if any is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	check := func(name string, c HealthChecker) {
		if c == nil {
			return
		}
		if err := c.HealthCheck(r.Context()); err != nil {
			components[name] = err.Error()
			healthy = false
			return
		}
		components[name] = "ok"
	}
	check("modem", s.modem)
	check("database", s.db)
	check("mqtt", s.mqtt)

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

func (s *Server) handleModem(w http.ResponseWriter, _ *http.Request) {
	stats := s.modem.Stats()
	v := ModemView{
		Connected:     s.modem.IsConnected(),
		FramesTx:      stats.FramesTx,
		FramesRx:      stats.FramesRx,
		FramesDropped: stats.FramesDropped,
		NAKsTotal:     stats.NAKsTotal,
		ErrorsTotal:   stats.ErrorsTotal,
	}
	if !stats.LastActivity.IsZero() {
		v.LastActivity = &stats.LastActivity
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	scenes := s.registry.Scenes()
	out := make([]map[string]int, 0, len(scenes))
	for _, sc := range scenes {
		out = append(out, map[string]int{"group": sc.Group()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": out, "count": len(out)})
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.List()
	out := make([]DeviceView, 0, len(devices))
	for _, dev := range devices {
		v, err := s.viewDevice(dev.DeviceAddress())
		if err != nil {
			// Removed between List and View.
			continue
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	addr, err := ins.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	v, err := s.viewDevice(addr)
	if errors.Is(err, ins.ErrDeviceNotFound) {
		writeNotFound(w, "device not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to read device", "address", addr.String(), "error", err)
		writeInternalError(w, "failed to read device")
		return
	}
	writeJSON(w, http.StatusOK, v)
}
