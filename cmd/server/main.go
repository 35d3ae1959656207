package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/fleet-status/internal/buildinfo"
	"github.com/and161185/fleet-status/internal/config"
	"github.com/and161185/fleet-status/internal/events"
	"github.com/and161185/fleet-status/internal/provision"
	"github.com/and161185/fleet-status/internal/server"
	"github.com/and161185/fleet-status/internal/telemetry"
	"github.com/and161185/fleet-status/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := config.NewServerConfig()
	logger := config.Logger
	defer func() { _ = logger.Sync() }()

	buildinfo.Log(logger, "server")

	store, err := storage.Open(ctx, storage.Options{
		DatabaseDsn:     config.DatabaseDsn,
		BadgerPath:      config.BadgerPath,
		FileStoragePath: config.FileStoragePath,
		Restore:         config.Restore,
	})
	if err != nil {
		logger.Fatal(err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorw("failed to close storage", "error", err)
		}
	}()

	if config.MachinesFile != "" {
		machines, err := provision.LoadFile(config.MachinesFile)
		if err != nil {
			logger.Fatal(err)
		}
		if err := provision.Register(ctx, store, machines); err != nil {
			logger.Fatal(err)
		}
		logger.Infow("machines registered", "count", len(machines), "file", config.MachinesFile)
	}

	var publisher events.Publisher = events.Nop{}
	if config.NATSURL != "" {
		p, err := events.NewNATSPublisher(config.NATSURL, config.NATSSubject, logger)
		if err != nil {
			logger.Fatal(err)
		}
		publisher = p
	}
	defer publisher.Close()

	logger.Infow("server config",
		"addr", config.Addr,
		"store_interval", config.StoreInterval,
		"file_storage_path", config.FileStoragePath,
		"restore", config.Restore,
		"database_dsn_set", config.DatabaseDsn != "",
		"badger_path", config.BadgerPath,
		"health_policy", config.HealthPolicy,
		"metric_schemes", config.MetricSchemes,
		"stale_after", config.StaleAfter,
		"trusted_subnet", config.TrustedSubnet,
		"trusted_proxies", config.TrustedProxies,
		"nats", config.NATSURL != "",
	)

	srv, err := server.NewServer(store, config, telemetry.New(), publisher)
	if err != nil {
		logger.Fatal(err)
	}
	if err := srv.Run(ctx); err != nil {
		logger.Fatal(err)
	}
}
