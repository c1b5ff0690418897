package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	ins "github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

const testCatalog = `
products:
  - key: "2477D"
    name: SwitchLinc Dimmer
    category: 0x01
    sub_category: 0x20
    features: {dimmer: dimmer}
    flags: {dual_band: true}
`

func testConfig(devices []config.DeviceConfig, scenes []config.SceneConfig) *config.Config {
	return &config.Config{Devices: devices, Scenes: scenes}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_INSTEON_CONFIG", "/nonexistent/path/insteon.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

func TestRun_InvalidDeviceAddress(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "insteon.yaml")

	content := `
bridge:
  id: test-bridge
modem:
  port: /dev/null-modem
database:
  path: ` + filepath.Join(tmpDir, "insteon.db") + `
devices:
  - address: "ZZ.2B.3C"
logging:
  level: error
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_INSTEON_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if !errors.Is(err, ins.ErrInvalidAddress) {
		t.Errorf("run() error = %v, want %v", err, ins.ErrInvalidAddress)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GRAYLOGIC_INSTEON_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("GRAYLOGIC_INSTEON_CONFIG", "/etc/graylogic/insteon.yaml")
	if got := getConfigPath(); got != "/etc/graylogic/insteon.yaml" {
		t.Errorf("getConfigPath() = %q, want %q", got, "/etc/graylogic/insteon.yaml")
	}
}

func TestLoadCatalog(t *testing.T) {
	empty, err := loadCatalog(config.CatalogConfig{})
	if err != nil {
		t.Fatalf("loadCatalog(empty) error = %v", err)
	}
	if empty.Len() != 0 {
		t.Errorf("empty catalog Len() = %d, want 0", empty.Len())
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalog), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	catalog, err := loadCatalog(config.CatalogConfig{Path: path})
	if err != nil {
		t.Fatalf("loadCatalog() error = %v", err)
	}
	if catalog.Len() != 1 {
		t.Errorf("Len() = %d, want 1", catalog.Len())
	}

	if _, err := loadCatalog(config.CatalogConfig{Path: "/nonexistent/catalog.yaml"}); err == nil {
		t.Error("loadCatalog() should fail for a missing file")
	}
}

func TestBuildRegistry(t *testing.T) {
	catalog, err := ins.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	cfg := testConfig(
		[]config.DeviceConfig{
			{Address: "1A.2B.3C", ProductKey: "2477D", DeviceID: "lamp-living"},
			{Address: "A1"},
		},
		[]config.SceneConfig{{Group: 1, Name: "evening"}},
	)

	registry, ids, err := buildRegistry(cfg, catalog)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}
	if len(registry.Scenes()) != 1 {
		t.Errorf("len(Scenes()) = %d, want 1", len(registry.Scenes()))
	}

	lamp, err := ins.ParseInsteonAddress("1A.2B.3C")
	if err != nil {
		t.Fatalf("ParseInsteonAddress() error = %v", err)
	}
	if ids[lamp] != "lamp-living" {
		t.Errorf("deviceIDs[lamp] = %q, want %q", ids[lamp], "lamp-living")
	}

	dev, err := registry.InsteonDevice(lamp)
	if err != nil {
		t.Fatalf("InsteonDevice() error = %v", err)
	}
	if _, ok := dev.Feature("dimmer"); !ok {
		t.Error("lamp should have the dimmer feature from the catalog")
	}
	if !dev.Flag("dual_band") {
		t.Error("lamp should carry the dual_band flag from the catalog")
	}
	if dev.HasModem() {
		t.Error("devices should not have a modem before the bridge starts")
	}

	x10, err := ins.ParseX10Address("A1")
	if err != nil {
		t.Fatalf("ParseX10Address() error = %v", err)
	}
	xdev, err := registry.X10Device(x10)
	if err != nil {
		t.Fatalf("X10Device() error = %v", err)
	}
	if len(xdev.Features()) != 0 {
		t.Errorf("X10 device without catalog entry has %d features, want 0", len(xdev.Features()))
	}
	if _, ok := ids[x10]; ok {
		t.Error("X10 device without device_id should not have an ID mapping")
	}
}

func TestBuildRegistryErrors(t *testing.T) {
	catalog, err := ins.ParseCatalog(nil)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr error
	}{
		{
			name:    "invalid address",
			cfg:     testConfig([]config.DeviceConfig{{Address: "1A.2B"}}, nil),
			wantErr: ins.ErrInvalidAddress,
		},
		{
			name: "duplicate address",
			cfg: testConfig([]config.DeviceConfig{
				{Address: "1A.2B.3C"},
				{Address: "1a.2b.3c"},
			}, nil),
			wantErr: ins.ErrDeviceExists,
		},
		{
			name:    "invalid scene group",
			cfg:     testConfig(nil, []config.SceneConfig{{Group: 256}}),
			wantErr: ins.ErrInvalidGroup,
		},
		{
			name:    "duplicate scene",
			cfg:     testConfig(nil, []config.SceneConfig{{Group: 3}, {Group: 3}}),
			wantErr: ins.ErrSceneExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildRegistry(tt.cfg, catalog)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("buildRegistry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
