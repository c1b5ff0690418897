package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	ins "github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/plm"
)

const testCatalog = `
products:
  - key: "2477D"
    name: SwitchLinc Dimmer
    model: "2477D"
    features: {dimmer: dimmer}
    flags: {dual_band: true}
`

type stubModem struct {
	err   error
	stats plm.Stats
}

func (m *stubModem) HealthCheck(context.Context) error { return m.err }
func (m *stubModem) IsConnected() bool                 { return m.err == nil }
func (m *stubModem) Stats() plm.Stats                  { return m.stats }

type stubChecker struct{ err error }

func (c stubChecker) HealthCheck(context.Context) error { return c.err }

var (
	lampAddr  = ins.InsteonAddress{0x1A, 0x2B, 0x3C}
	porchAddr = ins.X10Address{House: 'A', Unit: 1}
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testRegistry(t *testing.T) *ins.Registry {
	t.Helper()

	catalog, err := ins.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	pd := catalog.ProductData("2477D")

	lamp := ins.NewInsteonDevice(lampAddr, nil, pd)
	lamp.ResolveEngine(0x02)

	r := ins.NewRegistry()
	if err := r.Add(lamp); err != nil {
		t.Fatalf("Add lamp: %v", err)
	}
	if err := r.Add(ins.NewX10Device(porchAddr, nil, nil)); err != nil {
		t.Fatalf("Add porch: %v", err)
	}
	scene, err := ins.NewScene(1, nil)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	if err := r.AddScene(scene); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	return r
}

func testServer(t *testing.T, modem *stubModem) *Server {
	t.Helper()
	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:   testLogger(),
		Registry: testRegistry(t),
		Modem:    modem,
		DB:       stubChecker{},
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %s: %v", rec.Body.String(), err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Registry: ins.NewRegistry(), Modem: &stubModem{}}},
		{"no registry", Deps{Logger: testLogger(), Modem: &stubModem{}}},
		{"no modem", Deps{Logger: testLogger(), Registry: ins.NewRegistry()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		modemErr   error
		wantCode   int
		wantStatus string
		wantModem  string
	}{
		{"healthy", nil, http.StatusOK, "ok", "ok"},
		{"modem down", plm.ErrNotConnected, http.StatusServiceUnavailable, "degraded", plm.ErrNotConnected.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &stubModem{err: tt.modemErr})
			rec := get(t, srv, "/api/v1/health")

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status     string            `json:"status"`
				Version    string            `json:"version"`
				Components map[string]string `json:"components"`
			}
			decode(t, rec, &body)
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Components["modem"] != tt.wantModem {
				t.Errorf("components[modem] = %q, want %q", body.Components["modem"], tt.wantModem)
			}
			if body.Components["database"] != "ok" {
				t.Errorf("components[database] = %q, want ok", body.Components["database"])
			}
			if _, ok := body.Components["mqtt"]; ok {
				t.Error("mqtt should be absent when not configured")
			}
		})
	}
}

func TestHandleListDevices(t *testing.T) {
	srv := testServer(t, &stubModem{})
	rec := get(t, srv, "/api/v1/devices")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Devices []DeviceView `json:"devices"`
		Count   int          `json:"count"`
	}
	decode(t, rec, &body)

	if body.Count != 2 || len(body.Devices) != 2 {
		t.Fatalf("count = %d (%d devices), want 2", body.Count, len(body.Devices))
	}

	lamp := body.Devices[0]
	if lamp.Address != "1A.2B.3C" || lamp.Protocol != "insteon" {
		t.Errorf("devices[0] = %s/%s, want 1A.2B.3C/insteon", lamp.Address, lamp.Protocol)
	}
	if lamp.Engine != "I2CS" || !lamp.Resolved {
		t.Errorf("engine = %s (resolved %v), want I2CS resolved", lamp.Engine, lamp.Resolved)
	}
	if lamp.ProductKey != "2477D" {
		t.Errorf("product_key = %q, want 2477D", lamp.ProductKey)
	}
	if len(lamp.Features) != 1 || lamp.Features[0] != (FeatureView{Name: "dimmer", Type: "dimmer"}) {
		t.Errorf("features = %v, want [dimmer]", lamp.Features)
	}
	if !lamp.Flags["dual_band"] {
		t.Errorf("flags = %v, want dual_band", lamp.Flags)
	}

	porch := body.Devices[1]
	if porch.Address != "A1" || porch.Protocol != "x10" {
		t.Errorf("devices[1] = %s/%s, want A1/x10", porch.Address, porch.Protocol)
	}
	if porch.Engine != "" {
		t.Errorf("X10 engine = %q, want empty", porch.Engine)
	}
	if len(porch.Features) != 0 {
		t.Errorf("X10 features = %v, want none", porch.Features)
	}
}

func TestHandleGetDevice(t *testing.T) {
	srv := testServer(t, &stubModem{})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantAddr string
	}{
		{"insteon lower case", "/api/v1/devices/1a.2b.3c", http.StatusOK, "1A.2B.3C"},
		{"insteon compact", "/api/v1/devices/1A2B3C", http.StatusOK, "1A.2B.3C"},
		{"x10", "/api/v1/devices/a1", http.StatusOK, "A1"},
		{"invalid address", "/api/v1/devices/zz", http.StatusBadRequest, ""},
		{"unknown device", "/api/v1/devices/B7", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantAddr == "" {
				var e Error
				decode(t, rec, &e)
				if e.Status != tt.wantCode {
					t.Errorf("error status = %d, want %d", e.Status, tt.wantCode)
				}
				return
			}
			var v DeviceView
			decode(t, rec, &v)
			if v.Address != tt.wantAddr {
				t.Errorf("address = %q, want %q", v.Address, tt.wantAddr)
			}
		})
	}
}

func TestHandleListScenes(t *testing.T) {
	srv := testServer(t, &stubModem{})
	rec := get(t, srv, "/api/v1/scenes")

	var body struct {
		Scenes []map[string]int `json:"scenes"`
		Count  int              `json:"count"`
	}
	decode(t, rec, &body)
	if body.Count != 1 || body.Scenes[0]["group"] != 1 {
		t.Errorf("scenes = %v, want [group 1]", body.Scenes)
	}
}

func TestHandleModem(t *testing.T) {
	last := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	srv := testServer(t, &stubModem{stats: plm.Stats{FramesTx: 7, FramesRx: 9, NAKsTotal: 1, LastActivity: last}})
	rec := get(t, srv, "/api/v1/modem")

	var v ModemView
	decode(t, rec, &v)
	if !v.Connected {
		t.Error("connected = false, want true")
	}
	if v.FramesTx != 7 || v.FramesRx != 9 || v.NAKsTotal != 1 {
		t.Errorf("counters = %+v", v)
	}
	if v.LastActivity == nil || !v.LastActivity.Equal(last) {
		t.Errorf("last_activity = %v, want %v", v.LastActivity, last)
	}
}

func TestRequestID(t *testing.T) {
	srv := testServer(t, &stubModem{})

	rec := get(t, srv, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(t, &stubModem{})
	handler := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCloseBeforeStart(t *testing.T) {
	srv := testServer(t, &stubModem{})
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
