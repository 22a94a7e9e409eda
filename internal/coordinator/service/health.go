package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/shared/logging"
)

// FailureHandler is the scheduler surface the health checker needs: find
// workers with stale heartbeats and run the failure path for them.
type FailureHandler interface {
	StaleWorkerIDs(timeout time.Duration) []uuid.UUID
	HandleWorkerFailure(workerID uuid.UUID)
}

// WorkerHealthChecker actively sweeps for workers whose heartbeat has gone
// stale and treats them as failed, requeueing their in-flight jobs.
// Connection errors remain the primary failure signal; this sweep catches
// workers that hang without closing their socket.
type WorkerHealthChecker struct {
	checkInterval time.Duration
	staleTimeout  time.Duration
	scheduler     FailureHandler
	logger        logging.Logger
}

func NewWorkerHealthChecker(
	checkInterval time.Duration,
	staleTimeout time.Duration,
	scheduler FailureHandler,
	logger logging.Logger,
) *WorkerHealthChecker {
	return &WorkerHealthChecker{
		checkInterval: checkInterval,
		staleTimeout:  staleTimeout,
		scheduler:     scheduler,
		logger:        logger,
	}
}

func (h *WorkerHealthChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.removeStaleWorkers()
		}
	}
}

func (h *WorkerHealthChecker) removeStaleWorkers() {
	for _, workerID := range h.scheduler.StaleWorkerIDs(h.staleTimeout) {
		h.logger.Info("Removing stale worker", "worker_id", workerID, "timeout", h.staleTimeout)
		h.scheduler.HandleWorkerFailure(workerID)
	}
}
