package main

import (
	"log/slog"
	"os"

	configloader "github.com/foxseedlab/studentize/external/config"
	repositoryimpl "github.com/foxseedlab/studentize/external/repository"
	"github.com/foxseedlab/studentize/external/temporal"
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/foxseedlab/studentize/internal/sweeper"
	"github.com/samber/do/v2"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "task_queue", cfg.TemporalTaskQueue)

	injector := do.New()
	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	temporal.RegisterDI(injector)
	temporal.RegisterWorkerDI(injector)
	sweeper.RegisterDI(injector)

	tc, err := do.Invoke[client.Client](injector)
	if err != nil {
		slog.Error("failed to connect to temporal", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	sw := do.MustInvoke[*sweeper.Sweeper](injector)
	if err := sw.Start(); err != nil {
		slog.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}
	defer sw.Stop()

	w := do.MustInvoke[worker.Worker](injector)
	slog.Info("startup: temporal worker running")
	if err := w.Run(worker.InterruptCh()); err != nil {
		slog.Error("temporal worker stopped with error", "error", err)
	}
	slog.Info("shutting down")
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}
