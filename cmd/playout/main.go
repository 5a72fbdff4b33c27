// Gray Logic Playout - timeline-driven device control
//
// This is the main entry point for the playout service. It receives resolved
// timeline snapshots over MQTT or HTTP and keeps broadcast devices (PTZ
// cameras, Singular.Live graphics) in step with them by scheduling the
// minimal commands needed at each snapshot's time.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"

	_ "github.com/nerrad567/gray-logic-playout/migrations"

	"github.com/nerrad567/gray-logic-playout/internal/api"
	"github.com/nerrad567/gray-logic-playout/internal/devices/ptz"
	"github.com/nerrad567/gray-logic-playout/internal/devices/singular"
	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-playout/internal/metrics"
	"github.com/nerrad567/gray-logic-playout/internal/playout"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// CLI is the command-line interface.
type CLI struct {
	Config   string           `short:"c" help:"Configuration file path" default:"configs/config.yaml" env:"GRAYLOGIC_CONFIG"`
	LogLevel string           `name:"log-level" help:"Override logging.level (debug, info, warn, error)"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run   RunCmd   `cmd:"" default:"1" help:"Start the playout service"`
	Check CheckCmd `cmd:"" help:"Validate the configuration and mapping files, then exit"`
}

// RunCmd starts the service.
type RunCmd struct{}

// CheckCmd validates configuration without connecting to anything.
type CheckCmd struct{}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("playout"),
		kong.Description("Gray Logic Playout: timeline-driven device control"),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
		kong.UsageOnError(),
	)

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch kctx.Command() {
	case "check":
		err = check(&cli)
	default:
		err = run(ctx, &cli)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// loadConfig loads the configuration file and applies CLI overrides.
func loadConfig(cli *CLI) (*config.Config, error) {
	path := cli.Config
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	return cfg, nil
}

// check loads and validates the configuration and mapping, then reports
// what would be started.
func check(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	mapping, err := timeline.LoadMapping(cfg.Playout.MappingFile)
	if err != nil {
		return fmt.Errorf("loading mapping: %w", err)
	}

	known := make(map[string]bool, len(cfg.Playout.Devices))
	for _, d := range cfg.Playout.Devices {
		known[d.ID] = true
	}
	for layer, e := range mapping {
		if !known[e.DeviceID] {
			return fmt.Errorf("mapping layer %q targets unknown device %q", layer, e.DeviceID)
		}
	}

	log := logging.New(cfg.Logging, version)
	log.Info("configuration valid",
		"config", cli.Config,
		"mapping", cfg.Playout.MappingFile,
		"layers", len(mapping),
		"devices", len(cfg.Playout.Devices),
	)
	return nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cli: Parsed command-line options
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cli *CLI) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Playout",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", cli.Config)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	var store playout.HistoryStore
	if cfg.Playout.PersistHistory {
		store = playout.NewSQLiteHistoryStore(db.DB)
		log.Info("history persistence enabled", "restore", cfg.Playout.RestoreHistory)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	// Connect to InfluxDB (optional)
	recorders := playout.MultiRecorder{}
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorders = append(recorders, influxClient)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	var metricsRecorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		metricsRecorder = metrics.NewRecorder(cfg.Metrics.Namespace, nil)
		recorders = append(recorders, metricsRecorder)
	}

	mqttObserver := playout.NewMQTTObserver(mqttClient, byte(cfg.MQTT.QoS), log.Component("events"))
	observer := playout.MultiObserver{
		playout.NewLogObserver(log.Component("events")),
		mqttObserver,
	}

	// Load the layer mapping
	mapping, err := timeline.LoadMapping(cfg.Playout.MappingFile)
	if err != nil {
		return fmt.Errorf("loading mapping: %w", err)
	}
	mappingStore := timeline.NewMappingStore(mapping)
	log.Info("mapping loaded", "path", cfg.Playout.MappingFile, "layers", len(mapping))

	if cfg.Playout.WatchMapping {
		watcher, watchErr := startMappingWatcher(ctx, cfg.Playout.MappingFile, mappingStore, log)
		if watchErr != nil {
			return watchErr
		}
		defer watcher.Stop()
	}

	// Build devices
	clock := clockwork.NewRealClock()
	conductor := playout.NewConductor(clock)
	conductor.SetLogger(log.Component("conductor"))

	deps := playout.Deps{
		Mapping:        mappingStore,
		Clock:          clock,
		Observer:       observer,
		Recorder:       recorders,
		Logger:         log.Component("device"),
		Store:          store,
		RestoreHistory: cfg.Playout.RestoreHistory,
		SlowThreshold:  cfg.GetSlowCommandThreshold(),
		BurstLimit:     cfg.Playout.BurstConcurrency,
		CompareMode:    playout.ParseCompareMode(cfg.Playout.CompareMode),
	}
	if err := addDevices(conductor, cfg.Playout.Devices, deps, log); err != nil {
		return err
	}
	defer func() {
		log.Info("terminating devices")
		if termErr := conductor.TerminateAll(context.Background()); termErr != nil {
			log.Error("error terminating devices", "error", termErr)
		}
	}()

	// A failed device stays inactive; the rest keep running.
	active, initErr := conductor.InitAll(ctx)
	if initErr != nil {
		log.Warn("some devices failed to initialise", "error", initErr)
	}
	log.Info("devices initialised", "active", active, "configured", len(cfg.Playout.Devices))

	for _, st := range conductor.Statuses() {
		mqttObserver.PublishStatus(st.Status)
	}

	if err := conductor.StartCleanup(cfg.GetHistoryCleanupInterval(), cfg.GetHistoryWindow()); err != nil {
		return fmt.Errorf("starting history cleanup: %w", err)
	}

	// Timeline input
	ingress := playout.NewIngress(mqttClient, conductor, byte(cfg.MQTT.QoS))
	ingress.SetLogger(log.Component("ingress"))
	if cfg.Playout.Ingress.MQTT {
		if err := ingress.Start(ctx); err != nil {
			return fmt.Errorf("starting timeline ingress: %w", err)
		}
		defer ingress.Stop()
	}

	// HTTP API
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Devices:  conductor,
			Timeline: ingress,
			Metrics:  metricsRecorder.Handler(),
			Checks:   checks,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, ingress, devices,
	// mapping watcher, InfluxDB, MQTT, database.

	log.Info("Gray Logic Playout stopped")
	return nil
}

// addDevices creates a controller for every enabled device and registers
// it with the conductor.
//
// A device whose construction fails is a configuration error and stops
// startup. Runtime failures (unreachable camera, rejected token) surface
// later from InitAll and only disable that device.
func addDevices(c *playout.Conductor, devices []config.DeviceConfig, deps playout.Deps, log *logging.Logger) error {
	for _, dc := range devices {
		if !dc.IsEnabled() {
			log.Info("device disabled", "device", dc.ID, "kind", dc.Kind)
			continue
		}

		var (
			dev playout.Device
			err error
		)
		switch dc.Kind {
		case config.DeviceKindPanasonicPTZ:
			dev, err = ptz.NewDevice(dc, deps)
		case config.DeviceKindSingularLive:
			dev, err = singular.NewDevice(dc, deps)
		default:
			err = fmt.Errorf("unsupported device kind %q", dc.Kind)
		}
		if err != nil {
			return fmt.Errorf("creating device %s: %w", dc.ID, err)
		}

		if err := c.Add(dev); err != nil {
			return fmt.Errorf("adding device %s: %w", dc.ID, err)
		}
		log.Info("device configured", "device", dc.ID, "kind", dc.Kind)
	}
	return nil
}

// startMappingWatcher reloads the mapping file into store on change.
func startMappingWatcher(ctx context.Context, path string, store *timeline.MappingStore, log *logging.Logger) (*timeline.Watcher, error) {
	watcher, err := timeline.NewWatcher(path, store)
	if err != nil {
		return nil, fmt.Errorf("creating mapping watcher: %w", err)
	}
	watcher.SetLogger(log.Component("mapping"))
	if err := watcher.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting mapping watcher: %w", err)
	}
	return watcher, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Components to check, keyed by name
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		c, ok := checks[name]
		if !ok {
			continue
		}
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
