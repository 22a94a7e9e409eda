package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nemanja-m/jobgrid/internal/coordinator/api/rest"
	"github.com/nemanja-m/jobgrid/internal/coordinator/scheduler"
	"github.com/nemanja-m/jobgrid/internal/coordinator/server"
	"github.com/nemanja-m/jobgrid/internal/coordinator/service"
	"github.com/nemanja-m/jobgrid/internal/coordinator/storage"
	"github.com/nemanja-m/jobgrid/internal/shared/config"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadCoordinator(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	jobStore := storage.NewInMemoryJobStore()
	registry := storage.NewInMemoryWorkerRegistry()
	userStore := storage.NewInMemoryUserStore()

	launcher := scheduler.NewProcessLauncher(cfg.Scheduler.WorkerCommand, logger)
	sched := scheduler.New(jobStore, registry, launcher, scheduler.Config{
		MaxWorkers:   cfg.Scheduler.MaxWorkers,
		ScaleOutWait: cfg.Scheduler.ScaleOutWait,
	}, logger)
	auth := service.NewAuthService(userStore, logger)

	srv := server.NewServer(cfg.Server, sched, auth, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start control-plane listeners", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthChecker := service.NewWorkerHealthChecker(
		cfg.Health.CheckInterval, cfg.Health.StaleTimeout, sched, logger)
	go healthChecker.Start(ctx)

	restServer := rest.NewServer(cfg.REST, sched, logger)
	go func() {
		if err := restServer.Start(); err != nil {
			logger.Error("Observability API error", "error", err)
		}
	}()

	logger.Info("Coordinator started",
		"client_addr", srv.ClientAddr().String(),
		"worker_addr", srv.WorkerAddr().String(),
		"max_workers", cfg.Scheduler.MaxWorkers,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down coordinator")
	cancel()
	srv.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Observability API forced to shut down", "error", err)
	}

	logger.Info("Coordinator stopped")
}
