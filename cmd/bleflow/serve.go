package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/bleflow/internal/api"
	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/discovery"
	"github.com/nerrad567/bleflow/internal/entry"
	"github.com/nerrad567/bleflow/internal/flow"
	"github.com/nerrad567/bleflow/internal/history"
	"github.com/nerrad567/bleflow/internal/infrastructure/config"
	"github.com/nerrad567/bleflow/internal/infrastructure/database"
	"github.com/nerrad567/bleflow/internal/infrastructure/influxdb"
	"github.com/nerrad567/bleflow/internal/infrastructure/logging"
	"github.com/nerrad567/bleflow/internal/infrastructure/mdns"
	"github.com/nerrad567/bleflow/internal/infrastructure/mqtt"
	"github.com/nerrad567/bleflow/internal/integration"
	_ "github.com/nerrad567/bleflow/migrations"
)

// apiBasePath is announced over mDNS.
const apiBasePath = "/api/v1"

func (a *App) buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the discovery service and API",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *App) runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return run(ctx, a.configPath())
}

// run wires every component and blocks until ctx is cancelled. Deferred
// closes run in reverse start order.
func run(ctx context.Context, configPath string) error { //nolint:gocognit,funlen // startup wiring
	log := logging.Default()
	log.Info("starting bleflow",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	registry := entry.NewRegistry(entry.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading entry registry: %w", refreshErr)
	}
	log.Info("entry registry initialised", "entries", registry.Count())

	catalogue, err := integration.FromConfig(cfg.Integrations)
	if err != nil {
		return fmt.Errorf("loading integrations: %w", err)
	}
	log.Info("integrations loaded", "domains", catalogue.Domains())

	cache := bluetooth.NewCache(cfg.GetStaleAfter())
	manager := flow.NewManager(catalogue, registry, cache)
	manager.SetLogger(log)

	// Background workers stop on cancel; wait for them before the
	// database closes so queued history is flushed.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(historyRepo, 0)
	recorder.SetLogger(log)
	manager.Subscribe(recorder.Listen)
	workers.Add(1)
	go func() {
		defer workers.Done()
		recorder.Run(workerCtx)
	}()

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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	dispatcher := discovery.NewDispatcher(cache, catalogue, manager)
	dispatcher.SetLogger(log)
	dispatcher.SetAutoStart(cfg.Discovery.AutoStart)
	registry.Subscribe(dispatcher.OnEntryChange)

	var announcer *discovery.Announcer
	if influxClient != nil {
		dispatcher.SetSightingWriter(influxClient)
		announcer = discovery.NewAnnouncer(mqttClient, influxClient)
	} else {
		announcer = discovery.NewAnnouncer(mqttClient, nil)
	}
	announcer.SetLogger(log)
	manager.Subscribe(announcer.Listen)

	workers.Add(1)
	go func() {
		defer workers.Done()
		dispatcher.Run(workerCtx, cfg.GetSweepInterval())
	}()

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Flows:    manager,
		Entries:  registry,
		Cache:    cache,
		Profiles: catalogue,
		History:  historyRepo,
		MQTT:     mqttClient,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	dispatcher.SetDeviceWatcher(server)
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Subscribe last so no advertisement arrives before its consumers exist.
	if subErr := mqttClient.Subscribe(cfg.Discovery.Topic, byte(cfg.MQTT.QoS), dispatcher.HandleMessage); subErr != nil { //nolint:gosec // G115: QoS validated 0-2
		return fmt.Errorf("subscribing to advertisements: %w", subErr)
	}
	log.Info("listening for advertisements", "topic", cfg.Discovery.Topic, "auto_start", cfg.Discovery.AutoStart)

	if cfg.MDNS.Enabled {
		advertiser := mdns.NewAdvertiser(cfg.MDNS)
		if advErr := advertiser.Advertise(mdns.Info{
			Port:    cfg.API.Port,
			Version: version,
			SiteID:  cfg.Site.ID,
			APIPath: apiBasePath,
			Domains: catalogue.Domains(),
		}); advErr != nil {
			log.Warn("mDNS announcement failed", "error", advErr)
		} else {
			defer advertiser.Stop()
			log.Info("mDNS announcement started", "service", cfg.MDNS.Service, "instance", cfg.MDNS.Instance)
		}
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openDatabase opens SQLite and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
