package scheduler

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/golang-collections/collections/queue"
	"github.com/google/uuid"

	"github.com/nemanja-m/jobgrid/internal/coordinator/core"
	"github.com/nemanja-m/jobgrid/internal/shared/logging"
	"github.com/nemanja-m/jobgrid/internal/shared/protocol"
)

// Config contains dispatch and worker pool limits.
type Config struct {
	MaxWorkers   int
	ScaleOutWait time.Duration
}

// Scheduler owns every piece of contended scheduling state: the pending FIFO,
// the active job store, the history store and the worker registry. One mutex
// guards them together because a dispatch decision spans all four in a single
// logical step; session handlers only ever talk to the scheduler, never to
// the structures directly.
type Scheduler struct {
	mu       sync.Mutex
	jobs     core.JobStore
	registry core.WorkerRegistry
	pending  *queue.Queue

	launcher WorkerLauncher
	cfg      Config

	// workerReady wakes a dispatch pass blocked on scale-out; it is signaled
	// by the first registration of any new worker.
	workerReady chan struct{}

	logger logging.Logger
}

func New(
	jobs core.JobStore,
	registry core.WorkerRegistry,
	launcher WorkerLauncher,
	cfg Config,
	logger logging.Logger,
) *Scheduler {
	return &Scheduler{
		jobs:        jobs,
		registry:    registry,
		pending:     queue.New(),
		launcher:    launcher,
		cfg:         cfg,
		workerReady: make(chan struct{}, 1),
		logger:      logger,
	}
}

// Submit creates a PENDING job and appends it to the queue tail. It does not
// dispatch: the caller acknowledges the submission on the client connection
// first and then runs Dispatch, so the acknowledgment can never be overtaken
// by a transfer-port relay from an immediately assigned worker.
func (s *Scheduler) Submit(owner, scriptPath, dataDir, outputDir string) (uuid.UUID, error) {
	job := &core.Job{
		ID:          uuid.New(),
		Owner:       owner,
		ScriptPath:  scriptPath,
		DataDir:     dataDir,
		OutputDir:   outputDir,
		Status:      core.JobStatusPending,
		SubmittedAt: time.Now(),
	}

	s.mu.Lock()
	if err := s.jobs.SaveJob(job); err != nil {
		s.mu.Unlock()
		return uuid.Nil, err
	}
	s.pending.Enqueue(job)
	s.mu.Unlock()

	s.logger.Info("Job submitted", "job_id", job.ID, "owner", owner, "script", scriptPath)
	return job.ID, nil
}

// Dispatch runs the selection-and-assignment pass until the queue drains or
// no worker can take the head job. Triggered by submissions, completions,
// registrations and failure requeues.
func (s *Scheduler) Dispatch() {
	for {
		s.mu.Lock()
		job := s.peekPendingLocked()
		if job == nil {
			s.mu.Unlock()
			return
		}

		if worker := s.selectWorkerLocked(); worker != nil {
			s.pending.Dequeue()
			s.assignLocked(job, worker)
			s.mu.Unlock()
			continue
		}

		if s.registry.Count() >= s.cfg.MaxWorkers {
			s.logger.Debug("Worker pool at capacity, job stays queued",
				"job_id", job.ID, "queued", s.pending.Len())
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		// Scale out without holding the scheduler lock. Registration of the
		// new worker signals readiness; the timeout bounds a worker that
		// never comes up.
		s.logger.Info("No available workers, requesting scale-out", "job_id", job.ID)
		if err := s.launcher.Launch(); err != nil {
			s.logger.Error("Failed to launch worker process", "error", err)
			return
		}
		select {
		case <-s.workerReady:
		case <-time.After(s.cfg.ScaleOutWait):
			s.logger.Warn("Timed out waiting for new worker", "wait", s.cfg.ScaleOutWait)
		}

		s.mu.Lock()
		job = s.peekPendingLocked()
		if job == nil {
			s.mu.Unlock()
			return
		}
		worker := s.selectWorkerLocked()
		if worker == nil {
			// Still nothing; remaining entries wait for the next trigger.
			s.mu.Unlock()
			return
		}
		s.pending.Dequeue()
		s.assignLocked(job, worker)
		s.mu.Unlock()
	}
}

// RegisterWorker adds a freshly connected worker, wakes any dispatch pass
// waiting on scale-out and re-runs dispatch for queued jobs.
func (s *Scheduler) RegisterWorker(worker *core.Worker) error {
	s.mu.Lock()
	err := s.registry.AddWorker(worker)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case s.workerReady <- struct{}{}:
	default:
	}

	s.logger.Info("Worker registered", "worker_id", worker.ID, "pool_size", s.registry.Count())

	s.Dispatch()
	return nil
}

func (s *Scheduler) RecordHeartbeat(workerID uuid.UUID) error {
	return s.registry.RecordHeartbeat(workerID, time.Now())
}

// CheckStatus looks a job up in the active store, then in history, and
// returns a snapshot copy.
func (s *Scheduler) CheckStatus(jobID uuid.UUID) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.lookupLocked(jobID)
	if err != nil {
		return core.Job{}, err
	}
	return *job, nil
}

// Cancel cancels a PENDING job in place or signals the assigned worker for a
// PROCESSING one. The status change is authoritative immediately; the worker
// side terminates asynchronously.
func (s *Scheduler) Cancel(jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.jobs.GetJob(jobID)
	if err != nil {
		if _, histErr := s.jobs.GetHistoryJob(jobID); histErr == nil {
			return core.ErrJobNotCancellable
		}
		return core.ErrJobNotFound
	}

	switch job.Status {
	case core.JobStatusPending:
		s.removePendingLocked(job.ID)
		s.finalizeLocked(job, core.JobStatusCancelled)
		s.logger.Info("Cancelled pending job", "job_id", job.ID)
		return nil

	case core.JobStatusProcessing:
		worker, err := s.registry.GetWorker(*job.AssignedWorker)
		if err != nil {
			return core.ErrWorkerNotFound
		}
		// Fire and forget: no acknowledgment is part of the protocol.
		if err := worker.Conn.WriteLines(protocol.CmdCancelJob, job.ID.String()); err != nil {
			s.logger.Warn("Failed to send cancel to worker",
				"worker_id", worker.ID, "job_id", job.ID, "error", err)
		}
		s.finalizeLocked(job, core.JobStatusCancelled)
		s.logger.Info("Cancelled processing job", "job_id", job.ID, "worker_id", worker.ID)
		return nil

	default:
		return core.ErrJobNotCancellable
	}
}

// Bill reports billing fields for a COMPLETED job. Jobs in any other state
// have no computable cost.
func (s *Scheduler) Bill(jobID uuid.UUID) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.lookupLocked(jobID)
	if err != nil {
		return core.Bill{}, err
	}
	if job.Status != core.JobStatusCompleted || job.StartedAt == nil || job.EndedAt == nil {
		return core.Bill{}, core.ErrJobNotBillable
	}
	return core.Bill{
		JobID:     job.ID,
		StartedAt: *job.StartedAt,
		EndedAt:   *job.EndedAt,
		Cost:      core.Cost(*job.StartedAt, *job.EndedAt),
	}, nil
}

// HandleCompletion finalizes a job from a worker's JOB_COMPLETE report. Only
// the current assignee may finalize: a late report from an evicted worker
// whose job was already reassigned is discarded, and the replacement's report
// stays authoritative. The reporting worker is freed and its statistics
// updated regardless of whether the job is still active, so a cancelled job
// never strands its worker in the busy state. Freed capacity triggers another
// dispatch pass.
func (s *Scheduler) HandleCompletion(workerID, jobID uuid.UUID, success bool, elapsed time.Duration) {
	s.mu.Lock()
	job, err := s.jobs.GetJob(jobID)
	if err == nil && job.Status == core.JobStatusProcessing &&
		job.AssignedWorker != nil && *job.AssignedWorker == workerID {
		job.ExecutionTime = elapsed
		if success {
			s.finalizeLocked(job, core.JobStatusCompleted)
		} else {
			s.finalizeLocked(job, core.JobStatusFailed)
		}
		s.logger.Info("Job finished", "job_id", jobID, "status", job.Status, "elapsed", elapsed)
	} else {
		s.logger.Warn("Completion report for inactive or reassigned job",
			"job_id", jobID, "worker_id", workerID)
	}

	if err := s.registry.UpdateStats(workerID, elapsed); err == nil {
		s.registry.MarkAvailable(workerID)
	}
	s.mu.Unlock()

	s.Dispatch()
}

// HandleWorkerFailure removes a worker after a connection loss or staleness
// eviction and requeues or fails its in-flight job.
func (s *Scheduler) HandleWorkerFailure(workerID uuid.UUID) {
	s.mu.Lock()
	requeued := s.handleWorkerFailureLocked(workerID)
	s.mu.Unlock()

	if requeued {
		s.Dispatch()
	}
}

// JobForWorker returns a snapshot of the PROCESSING job assigned to the given
// worker. Used to route transfer-port relays to the owning client.
func (s *Scheduler) JobForWorker(workerID uuid.UUID) (core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.jobs.ListJobs()
	if err != nil {
		return core.Job{}, err
	}
	for _, job := range jobs {
		if job.AssignedWorker != nil && *job.AssignedWorker == workerID &&
			job.Status == core.JobStatusProcessing {
			return *job, nil
		}
	}
	return core.Job{}, core.ErrJobNotFound
}

// StaleWorkerIDs returns workers whose last heartbeat is older than timeout.
func (s *Scheduler) StaleWorkerIDs(timeout time.Duration) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale, err := s.registry.StaleWorkers(time.Now().Add(-timeout))
	if err != nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(stale))
	for _, worker := range stale {
		ids = append(ids, worker.ID)
	}
	return ids
}

// Jobs returns snapshot copies of every known job, active and historical.
func (s *Scheduler) Jobs() []core.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, _ := s.jobs.ListJobs()
	history, _ := s.jobs.ListHistory()
	snapshot := make([]core.Job, 0, len(active)+len(history))
	for _, job := range active {
		snapshot = append(snapshot, *job)
	}
	for _, job := range history {
		snapshot = append(snapshot, *job)
	}
	return snapshot
}

// Workers returns snapshot copies of the registry without connection handles.
func (s *Scheduler) Workers() []core.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()

	workers, _ := s.registry.ListWorkers()
	snapshot := make([]core.Worker, 0, len(workers))
	for _, worker := range workers {
		w := *worker
		w.Conn = nil
		snapshot = append(snapshot, w)
	}
	return snapshot
}

// QueueLen reports the number of jobs awaiting assignment.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

func (s *Scheduler) peekPendingLocked() *core.Job {
	if s.pending.Len() == 0 {
		return nil
	}
	return s.pending.Peek().(*core.Job)
}

// selectWorkerLocked picks the available worker with the lowest load factor.
// Iteration order over the registry is arbitrary, which is fine: ties may
// break either way.
func (s *Scheduler) selectWorkerLocked() *core.Worker {
	workers, err := s.registry.ListWorkers()
	if err != nil {
		return nil
	}
	var best *core.Worker
	for _, worker := range workers {
		if !worker.Available {
			continue
		}
		if best == nil || worker.LoadFactor() < best.LoadFactor() {
			best = worker
		}
	}
	return best
}

// assignLocked is the single critical section that pairs worker selection
// with the busy flag: no concurrent dispatch pass can observe the worker as
// available once this runs.
func (s *Scheduler) assignLocked(job *core.Job, worker *core.Worker) {
	if !job.Status.CanTransitionTo(core.JobStatusProcessing) {
		s.logger.Warn("Skipping dispatch of non-pending job", "job_id", job.ID, "status", job.Status)
		return
	}

	s.registry.MarkBusy(worker.ID, job.ID)
	now := time.Now()
	workerID := worker.ID
	job.Status = core.JobStatusProcessing
	job.StartedAt = &now
	job.AssignedWorker = &workerID

	err := worker.Conn.WriteLines(
		protocol.CmdProcessJob,
		job.ID.String(),
		job.ScriptPath,
		job.DataDir,
		job.OutputDir,
	)
	if err != nil {
		s.logger.Error("Failed to send job to worker, treating worker as failed",
			"worker_id", worker.ID, "job_id", job.ID, "error", err)
		s.handleWorkerFailureLocked(worker.ID)
		return
	}

	s.logger.Info("Job assigned", "job_id", job.ID, "worker_id", worker.ID,
		"load_factor", strconv.FormatFloat(worker.LoadFactor(), 'f', -1, 64))
}

func (s *Scheduler) handleWorkerFailureLocked(workerID uuid.UUID) (requeued bool) {
	worker, err := s.registry.GetWorker(workerID)
	if err != nil {
		// Already evicted; connection teardown and staleness sweeps may race.
		return false
	}
	currentJob := worker.CurrentJob
	s.registry.RemoveWorker(workerID)
	// Tear the connection down so a stale-but-connected worker's session ends
	// instead of lingering as an unregistered zombie.
	if worker.Conn != nil {
		worker.Conn.Close()
	}
	s.logger.Info("Worker removed", "worker_id", workerID, "pool_size", s.registry.Count())

	if currentJob == nil {
		return false
	}
	job, err := s.jobs.GetJob(*currentJob)
	if err != nil || job.Status != core.JobStatusProcessing {
		return false
	}

	if job.RetryCount < core.MaxRetries {
		job.RetryCount++
		job.Status = core.JobStatusPending
		job.StartedAt = nil
		job.AssignedWorker = nil
		s.pending.Enqueue(job)
		s.logger.Info("Requeued job after worker failure",
			"job_id", job.ID, "retry", job.RetryCount)
		return true
	}

	s.finalizeLocked(job, core.JobStatusFailed)
	s.logger.Warn("Job failed permanently after retries",
		"job_id", job.ID, "retries", job.RetryCount)
	return false
}

// finalizeLocked applies a terminal status, stamps the end time and relocates
// the job into history.
func (s *Scheduler) finalizeLocked(job *core.Job, status core.JobStatus) {
	now := time.Now()
	job.Status = status
	job.EndedAt = &now
	if err := s.jobs.MoveToHistory(job); err != nil {
		s.logger.Error("Failed to move job to history", "job_id", job.ID, "error", err)
	}
}

// removePendingLocked rebuilds the queue without the given job, preserving
// FIFO order of the rest.
func (s *Scheduler) removePendingLocked(jobID uuid.UUID) {
	n := s.pending.Len()
	for i := 0; i < n; i++ {
		job := s.pending.Dequeue().(*core.Job)
		if job.ID != jobID {
			s.pending.Enqueue(job)
		}
	}
}

func (s *Scheduler) lookupLocked(jobID uuid.UUID) (*core.Job, error) {
	job, err := s.jobs.GetJob(jobID)
	if err == nil {
		return job, nil
	}
	job, err = s.jobs.GetHistoryJob(jobID)
	if err == nil {
		return job, nil
	}
	if errors.Is(err, core.ErrJobNotFound) {
		return nil, core.ErrJobNotFound
	}
	return nil, err
}
