package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nemanja-m/jobgrid/internal/shared/config"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
	"github.com/nemanja-m/jobgrid/internal/worker/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadWorker(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	conn, err := net.Dial("tcp", cfg.Coordinator.Addr)
	if err != nil {
		logger.Fatal("Failed to connect to coordinator", "addr", cfg.Coordinator.Addr, "error", err)
	}
	lineConn := protocol.NewLineConn(conn)
	defer lineConn.Close()

	executor := service.NewProcessExecutor(cfg.Executor.Interpreter, logger)
	runtime := service.NewRuntime(lineConn, cfg, executor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runtime.Run(ctx)
	}()

	logger.Info("Worker started",
		"coordinator", cfg.Coordinator.Addr,
		"interpreter", cfg.Executor.Interpreter,
		"heartbeat", cfg.Coordinator.HeartbeatInterval.String(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down worker")
		cancel()
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Worker stopped", "error", err)
		}
	}
}
