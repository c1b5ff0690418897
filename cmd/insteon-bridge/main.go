// Gray Logic Insteon Bridge
//
// Connects a PowerLinc modem (PLM) to the Gray Logic MQTT bus. Commands
// arrive on graylogic/command/insteon/{address}; device state, acks and
// bridge health are published back.
//
// Insteon devices are addressed as "1A.2B.3C", X10 devices as "A1".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-insteon/migrations"

	"github.com/nerrad567/gray-logic-insteon/internal/api"
	insteonbridge "github.com/nerrad567/gray-logic-insteon/internal/bridges/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/mqtt"
	ins "github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/plm"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/insteon.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// Components are started in dependency order and shut down in reverse.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Insteon bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	catalog, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	registry, deviceIDs, err := buildRegistry(cfg, catalog)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	registry.SetLogger(log)
	log.Info("device registry initialised", "devices", registry.Count(), "scenes", len(registry.Scenes()))

	port, err := plm.OpenSerial(plm.SerialConfig{Port: cfg.Modem.Port, BaudRate: cfg.Modem.BaudRate})
	if err != nil {
		return fmt.Errorf("opening modem: %w", err)
	}
	modem := plm.New(port, plm.Options{AckTimeout: cfg.AckTimeout(), Logger: log})
	modem.Start()
	defer func() {
		log.Info("closing modem")
		if closeErr := modem.Close(); closeErr != nil {
			log.Error("error closing modem", "error", closeErr)
		}
	}()

	if info, infoErr := modem.Info(ctx); infoErr != nil {
		log.Warn("modem info unavailable", "error", infoErr)
	} else {
		log.Info("modem connected",
			"port", cfg.Modem.Port,
			"address", info.Address.String(),
			"firmware", info.Firmware,
		)
	}

	lwt, err := insteonbridge.LWTPayload(cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("building LWT payload: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{Topic: insteonbridge.HealthTopic(), Payload: lwt})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log)
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	var telemetry insteonbridge.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			// Telemetry is optional; run without it.
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", influxErr)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write failed", "error", err)
			})
			defer func() {
				log.Info("closing InfluxDB")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			telemetry = influxClient
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	bridge, err := insteonbridge.NewBridge(insteonbridge.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		Port:           cfg.Modem.Port,
		HealthInterval: cfg.HealthInterval(),
		MQTTClient:     mqttClient,
		Modem:          modem,
		Registry:       registry,
		Engines:        insteonbridge.NewSQLiteEngineStore(db.DB),
		Telemetry:      telemetry,
		DeviceIDs:      deviceIDs,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Registry: registry,
			Modem:    modem,
			DB:       db,
			MQTT:     mqttClient,
			States:   mqttClient,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("Gray Logic Insteon bridge started")

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_INSTEON_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_INSTEON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadCatalog loads the device-type catalog, or returns an empty one when
// no path is configured.
func loadCatalog(cfg config.CatalogConfig) (*ins.Catalog, error) {
	if cfg.Path == "" {
		return ins.ParseCatalog(nil)
	}
	catalog, err := ins.LoadCatalog(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return catalog, nil
}

// buildRegistry creates devices and scenes from configuration. Devices get
// product data and features from the catalog; no modem is attached yet.
func buildRegistry(cfg *config.Config, catalog *ins.Catalog) (*ins.Registry, map[ins.DeviceAddress]string, error) {
	registry := ins.NewRegistry()
	deviceIDs := make(map[ins.DeviceAddress]string, len(cfg.Devices))

	for _, dc := range cfg.Devices {
		addr, err := ins.ParseAddress(dc.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("device %q: %w", dc.Address, err)
		}

		// Features and flags come from the catalog entry at construction.
		pd := catalog.ProductData(dc.ProductKey)

		var dev ins.Entity
		switch a := addr.(type) {
		case ins.InsteonAddress:
			dev = ins.NewInsteonDevice(a, nil, pd)
		case ins.X10Address:
			dev = ins.NewX10Device(a, nil, pd)
		default:
			return nil, nil, fmt.Errorf("device %q: %w", dc.Address, ins.ErrInvalidAddress)
		}

		if err := registry.Add(dev); err != nil {
			return nil, nil, err
		}
		if dc.DeviceID != "" {
			deviceIDs[addr] = dc.DeviceID
		}
	}

	for _, sc := range cfg.Scenes {
		scene, err := ins.NewScene(sc.Group, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("scene %q: %w", sc.Name, err)
		}
		if err := registry.AddScene(scene); err != nil {
			return nil, nil, err
		}
	}

	return registry, deviceIDs, nil
}
