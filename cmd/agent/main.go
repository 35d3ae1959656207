package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/fleet-status/cmd/agent/collector"
	"github.com/and161185/fleet-status/internal/buildinfo"
	"github.com/and161185/fleet-status/internal/client"
	"github.com/and161185/fleet-status/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.NewClientConfig()
	buildinfo.Log(cfg.Logger, "agent")

	if err := run(ctx, cfg); err != nil {
		cfg.Logger.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig) error {
	col, err := collector.New(cfg.ServiceUnit, cfg.DiskPath, cfg.MetricScheme)
	if err != nil {
		return err
	}
	agent, err := client.NewClient(col, cfg)
	if err != nil {
		return err
	}

	cfg.Logger.Infow("agent started",
		"server", cfg.ServerAddr,
		"machine", cfg.MachineID,
		"report_interval", cfg.ReportInterval,
		"scheme", cfg.MetricScheme,
		"legacy", cfg.Legacy,
	)

	err = agent.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
